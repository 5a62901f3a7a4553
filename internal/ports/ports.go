package ports

import (
	"context"
	"time"

	"github.com/adrata/buyergroup/internal/domain"
)

// CandidateSource resolves a company to a deduplicated candidate list
// along with the audit trail of the provider calls it took to build it.
type CandidateSource interface {
	FindCandidates(ctx context.Context, company domain.Company) ([]domain.CandidatePerson, []domain.EnrichmentAttempt, error)
}

// Repository persists pipeline output. The core depends only on
// idempotent upsert semantics keyed by stable external identifiers, never
// on a specific schema; reruns must not create duplicates.
type Repository interface {
	UpsertCompany(ctx context.Context, company domain.Company) error
	UpsertPerson(ctx context.Context, company domain.Company, person domain.CandidatePerson) error
	// AlreadyEnriched returns the external ids that already carry enriched
	// contact data, so reruns never double-charge enrichment credit.
	AlreadyEnriched(ctx context.Context, ids []string) (map[string]bool, error)
	// AppendAttempt and SaveBuyerGroup are append-only writes.
	AppendAttempt(ctx context.Context, runID string, company domain.Company, attempt domain.EnrichmentAttempt) error
	SaveBuyerGroup(ctx context.Context, group domain.BuyerGroup) error
}

// Reporter emits the structured run summary, the only externally
// observable output besides the BuyerGroup records themselves.
type Reporter interface {
	PublishSummary(ctx context.Context, summary domain.RunSummary) error
}

// Metrics counts pipeline activity for operational visibility.
type Metrics interface {
	CompanyProcessed(failed bool)
	PeopleDiscovered(n int)
	PeopleExcluded(n int)
	CreditsSpent(provider string, n int)
	ProviderError(provider string)
}

// Scheduler controls when recurring pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
