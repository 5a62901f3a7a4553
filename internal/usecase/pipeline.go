package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adrata/buyergroup/internal/assemble"
	"github.com/adrata/buyergroup/internal/budget"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/domainmatch"
	"github.com/adrata/buyergroup/internal/ports"
	"github.com/adrata/buyergroup/internal/roles"
)

// Enricher fills missing contact fields for one person and returns the
// attempt trail.
type Enricher interface {
	EnrichPerson(ctx context.Context, company domain.Company, person domain.CandidatePerson) (domain.CandidatePerson, []domain.EnrichmentAttempt, error)
}

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.CandidateSource
	Classifier *roles.Classifier
	Enricher   Enricher
	Assembler  *assemble.Assembler
	Tracker    *budget.Tracker
	Repository ports.Repository
	Reporter   ports.Reporter
	Metrics    ports.Metrics
	Logger     *slog.Logger
	Workers    int
}

// Pipeline implements the buyer-group discovery workflow: discovery →
// classification → enrichment → assembly, per company, with errors
// isolated to the entity being processed.
type Pipeline struct {
	source     ports.CandidateSource
	classifier *roles.Classifier
	enricher   Enricher
	assembler  *assemble.Assembler
	tracker    *budget.Tracker
	repository ports.Repository
	reporter   ports.Reporter
	metrics    ports.Metrics
	logger     *slog.Logger
	workers    int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	workers := deps.Workers
	if workers < 1 {
		workers = 1
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = roles.NewClassifier(nil)
	}
	assembler := deps.Assembler
	if assembler == nil {
		assembler = assemble.New()
	}
	return &Pipeline{
		source:     deps.Source,
		classifier: classifier,
		enricher:   deps.Enricher,
		assembler:  assembler,
		tracker:    deps.Tracker,
		repository: deps.Repository,
		reporter:   deps.Reporter,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		workers:    workers,
	}
}

// ProcessBatch runs the pipeline over many companies with a bounded
// worker pool. One company's failure is recorded, never allowed to abort
// the batch; hitting the run's total cost ceiling stops further companies
// but still returns everything assembled so far.
func (p *Pipeline) ProcessBatch(ctx context.Context, companies []domain.Company) ([]domain.BuyerGroup, domain.RunSummary) {
	runID := uuid.NewString()
	summary := domain.RunSummary{
		RunID:     runID,
		StartedAt: time.Now(),
	}

	var (
		mu     sync.Mutex
		groups []domain.BuyerGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, company := range companies {
		company := company
		// The stop signal is cooperative: checked between companies,
		// never mid-call.
		if gctx.Err() != nil {
			break
		}
		if p.tracker != nil && p.tracker.TotalExhausted() {
			mu.Lock()
			summary.StoppedCostCeiling = true
			mu.Unlock()
			break
		}

		g.Go(func() error {
			group, err := p.ProcessCompany(gctx, runID, company)

			mu.Lock()
			defer mu.Unlock()
			summary.Companies++
			if err != nil {
				summary.CompaniesFailed++
				summary.Failures = append(summary.Failures, domain.CompanyFailure{
					Company: company.Name,
					Reason:  err.Error(),
				})
				p.countCompany(true)
				p.warn("company processing failed", "company", company.Name, "error", err)
				return nil
			}
			p.countCompany(false)
			groups = append(groups, group)
			summary.GroupsAssembled++
			if len(group.Members) == 0 {
				summary.EmptyGroups++
			}
			summary.PeopleDiscovered += len(group.Members) + len(group.Excluded)
			summary.PeopleExcluded += len(group.Excluded)
			if p.metrics != nil {
				p.metrics.PeopleDiscovered(len(group.Members) + len(group.Excluded))
				p.metrics.PeopleExcluded(len(group.Excluded))
			}
			return nil
		})
	}
	_ = g.Wait()

	if p.tracker != nil {
		summary.TotalCredits = p.tracker.TotalSpent()
		summary.CreditsByProvider = p.tracker.Snapshot()
		if p.tracker.TotalExhausted() {
			summary.StoppedCostCeiling = true
		}
	}
	summary.FinishedAt = time.Now()

	if p.reporter != nil {
		if err := p.reporter.PublishSummary(ctx, summary); err != nil {
			p.warn("publish run summary", "error", err)
		}
	}

	return groups, summary
}

// ProcessCompany runs the full sequential pipeline for one company.
func (p *Pipeline) ProcessCompany(ctx context.Context, runID string, company domain.Company) (domain.BuyerGroup, error) {
	company = withCanonicalDomain(company)
	asOf := time.Now()

	if p.repository != nil {
		if err := p.repository.UpsertCompany(ctx, company); err != nil {
			return domain.BuyerGroup{}, fmt.Errorf("upsert company %s: %w", company.Name, err)
		}
	}

	candidates, trail, err := p.source.FindCandidates(ctx, company)
	if err != nil {
		p.recordAttempts(ctx, runID, company, trail)
		return domain.BuyerGroup{}, fmt.Errorf("find candidates: %w", err)
	}

	enrichedBefore, err := p.alreadyEnriched(ctx, candidates)
	if err != nil {
		return domain.BuyerGroup{}, fmt.Errorf("load enrichment state: %w", err)
	}

	var (
		members  []domain.RoleClassification
		excluded []domain.CandidatePerson
	)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			break
		}

		if candidate.Excluded {
			excluded = append(excluded, candidate)
			p.upsertPerson(ctx, company, candidate)
			continue
		}

		// People already enriched in persistence are never re-billed:
		// rerunning discovery must not double-charge enrichment credit.
		if p.enricher != nil && !enrichedBefore[candidate.ExternalSourceID] {
			enriched, attempts, enrichErr := p.enricher.EnrichPerson(ctx, company, candidate)
			trail = append(trail, attempts...)
			candidate = enriched
			if enrichErr != nil {
				// Cancellation mid-company: keep what we have.
				break
			}
		}

		p.upsertPerson(ctx, company, candidate)
		members = append(members, p.classifier.Score(candidate, company, asOf))
	}

	// Admission check at assembly: an email resolved during enrichment
	// must still match the canonical domain.
	if flagged := domainmatch.AuditMembers(company, members); len(flagged) > 0 {
		drop := make(map[string]struct{}, len(flagged))
		for _, person := range flagged {
			drop[person.ExternalSourceID] = struct{}{}
		}
		kept := members[:0]
		for _, m := range members {
			if _, ok := drop[m.Person.ExternalSourceID]; !ok {
				kept = append(kept, m)
				continue
			}
			m.Person.Excluded = true
			m.Person.ExclusionReason = domain.ExclusionDomainMismatch
			excluded = append(excluded, m.Person)
			p.upsertPerson(ctx, company, m.Person)
		}
		members = kept
	}

	p.recordAttempts(ctx, runID, company, trail)
	p.countCredits(trail)

	group := p.assembler.Assemble(runID, company, members, excluded, trail)
	if p.repository != nil {
		if err := p.repository.SaveBuyerGroup(ctx, group); err != nil {
			return domain.BuyerGroup{}, fmt.Errorf("save buyer group %s: %w", company.Name, err)
		}
	}

	p.debug("company processed", "company", company.Name,
		"members", len(group.Members), "excluded", len(group.Excluded),
		"cohesion", group.CohesionScore, "cost", group.TotalCost)

	return group, nil
}

// withCanonicalDomain derives the company's canonical domain once, before
// any provider work; it is immutable for the rest of the run.
func withCanonicalDomain(company domain.Company) domain.Company {
	if company.CanonicalDomain != "" {
		return company
	}
	if d, ok := domainmatch.Extract(company.Website); ok {
		company.CanonicalDomain = d
	}
	return company
}

func (p *Pipeline) alreadyEnriched(ctx context.Context, candidates []domain.CandidatePerson) (map[string]bool, error) {
	if p.repository == nil || len(candidates) == 0 {
		return map[string]bool{}, nil
	}
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ExternalSourceID)
	}
	return p.repository.AlreadyEnriched(ctx, ids)
}

func (p *Pipeline) upsertPerson(ctx context.Context, company domain.Company, person domain.CandidatePerson) {
	if p.repository == nil {
		return
	}
	if err := p.repository.UpsertPerson(ctx, company, person); err != nil {
		p.warn("upsert person", "person", person.ExternalSourceID, "error", err)
	}
}

func (p *Pipeline) recordAttempts(ctx context.Context, runID string, company domain.Company, attempts []domain.EnrichmentAttempt) {
	if p.repository == nil {
		return
	}
	for _, attempt := range attempts {
		if err := p.repository.AppendAttempt(ctx, runID, company, attempt); err != nil {
			p.warn("append attempt", "provider", attempt.Provider, "error", err)
		}
	}
}

func (p *Pipeline) countCredits(attempts []domain.EnrichmentAttempt) {
	if p.metrics == nil {
		return
	}
	for _, attempt := range attempts {
		if attempt.CreditCost > 0 {
			p.metrics.CreditsSpent(attempt.Provider, attempt.CreditCost)
		}
		if attempt.Outcome == domain.OutcomeProviderError {
			p.metrics.ProviderError(attempt.Provider)
		}
	}
}

func (p *Pipeline) countCompany(failed bool) {
	if p.metrics != nil {
		p.metrics.CompanyProcessed(failed)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
