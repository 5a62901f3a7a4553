package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrata/buyergroup/internal/budget"
	"github.com/adrata/buyergroup/internal/domain"
)

type fakeSource struct {
	candidates map[string][]domain.CandidatePerson
	err        error
}

func (f *fakeSource) FindCandidates(_ context.Context, company domain.Company) ([]domain.CandidatePerson, []domain.EnrichmentAttempt, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.candidates[company.Name], nil, nil
}

type fakeEnricher struct {
	mu     sync.Mutex
	emails map[string]string
	calls  []string
}

func (f *fakeEnricher) EnrichPerson(_ context.Context, _ domain.Company, person domain.CandidatePerson) (domain.CandidatePerson, []domain.EnrichmentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, person.ExternalSourceID)

	attempt := domain.EnrichmentAttempt{
		PersonID:   person.ExternalSourceID,
		Provider:   "contactout",
		Operation:  domain.OpEnrich,
		Outcome:    domain.OutcomeNoResult,
		CreditCost: 2,
	}
	if email, ok := f.emails[person.ExternalSourceID]; ok && person.Email() == "" {
		person.EmailCandidates = append(person.EmailCandidates, email)
		attempt.Outcome = domain.OutcomeSuccess
	}
	return person, []domain.EnrichmentAttempt{attempt}, nil
}

type fakeRepo struct {
	mu       sync.Mutex
	enriched map[string]bool
	people   []domain.CandidatePerson
	groups   []domain.BuyerGroup
	attempts []domain.EnrichmentAttempt
}

func (f *fakeRepo) UpsertCompany(context.Context, domain.Company) error { return nil }

func (f *fakeRepo) UpsertPerson(_ context.Context, _ domain.Company, person domain.CandidatePerson) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.people = append(f.people, person)
	return nil
}

func (f *fakeRepo) AlreadyEnriched(_ context.Context, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if f.enriched[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeRepo) AppendAttempt(_ context.Context, _ string, _ domain.Company, attempt domain.EnrichmentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeRepo) SaveBuyerGroup(_ context.Context, group domain.BuyerGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, group)
	return nil
}

type fakeReporter struct {
	mu        sync.Mutex
	summaries []domain.RunSummary
}

func (f *fakeReporter) PublishSummary(_ context.Context, summary domain.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func acme() domain.Company {
	return domain.Company{Name: "Acme", Website: "https://www.acme.com/about"}
}

func TestProcessCompany(t *testing.T) {
	t.Parallel()

	source := &fakeSource{candidates: map[string][]domain.CandidatePerson{
		"Acme": {
			{ExternalSourceID: "p1", FullName: "Jane Roe", Title: "Chief Technology Officer", CompanyName: "Acme"},
			{ExternalSourceID: "p2", FullName: "John Doe", Title: "Senior Engineer", CompanyName: "Acme"},
			{ExternalSourceID: "p3", FullName: "Max Glass", Title: "Consultant", Excluded: true, ExclusionReason: domain.ExclusionDomainMismatch},
		},
	}}
	enricher := &fakeEnricher{emails: map[string]string{
		"p1": "jane@acme.com",
		"p2": "john@mail.acme.com",
	}}
	repo := &fakeRepo{}

	p := NewPipeline(PipelineDeps{Source: source, Enricher: enricher, Repository: repo})
	group, err := p.ProcessCompany(context.Background(), "run-1", acme())
	require.NoError(t, err)

	assert.Equal(t, "acme.com", group.Company.CanonicalDomain, "canonical domain derived from website")
	require.Len(t, group.Members, 2)
	assert.Equal(t, domain.RoleDecisionMaker, group.Members[0].Role)
	assert.Equal(t, domain.RoleChampion, group.Members[1].Role)
	require.Len(t, group.Excluded, 1)
	assert.Equal(t, "p3", group.Excluded[0].ExternalSourceID)

	assert.Equal(t, 4, group.TotalCost, "two enrichment calls at two credits each")
	assert.Len(t, repo.groups, 1)
	assert.Len(t, repo.attempts, 2)
	assert.ElementsMatch(t, []string{"p1", "p2"}, enricher.calls, "excluded people are never enriched")
}

func TestProcessCompanyExcludesMismatchedEnrichedEmail(t *testing.T) {
	t.Parallel()

	source := &fakeSource{candidates: map[string][]domain.CandidatePerson{
		"Acme": {{ExternalSourceID: "p1", FullName: "Jane Roe", Title: "CEO"}},
	}}
	enricher := &fakeEnricher{emails: map[string]string{"p1": "jane@other.cz"}}

	p := NewPipeline(PipelineDeps{Source: source, Enricher: enricher})
	group, err := p.ProcessCompany(context.Background(), "run-1", acme())
	require.NoError(t, err)

	assert.Empty(t, group.Members)
	require.Len(t, group.Excluded, 1)
	assert.Equal(t, domain.ExclusionDomainMismatch, group.Excluded[0].ExclusionReason)
}

func TestProcessCompanySkipsAlreadyEnriched(t *testing.T) {
	t.Parallel()

	source := &fakeSource{candidates: map[string][]domain.CandidatePerson{
		"Acme": {
			{ExternalSourceID: "p1", FullName: "Jane Roe", Title: "CEO", EmailCandidates: []string{"jane@acme.com"}},
			{ExternalSourceID: "p2", FullName: "John Doe", Title: "VP Sales"},
		},
	}}
	enricher := &fakeEnricher{emails: map[string]string{"p2": "john@acme.com"}}
	repo := &fakeRepo{enriched: map[string]bool{"p1": true}}

	p := NewPipeline(PipelineDeps{Source: source, Enricher: enricher, Repository: repo})
	group, err := p.ProcessCompany(context.Background(), "run-1", acme())
	require.NoError(t, err)

	assert.Equal(t, []string{"p2"}, enricher.calls, "persisted enrichment is never re-billed")
	assert.Len(t, group.Members, 2)
}

func TestProcessCompanyEmptyGroupIsSuccess(t *testing.T) {
	t.Parallel()

	source := &fakeSource{candidates: map[string][]domain.CandidatePerson{}}
	p := NewPipeline(PipelineDeps{Source: source})

	group, err := p.ProcessCompany(context.Background(), "run-1", acme())
	require.NoError(t, err)
	assert.Empty(t, group.Members)
	assert.Equal(t, domain.PriorityLow, group.Priority)
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("provider exploded")
	source := &failingSource{
		good: &fakeSource{candidates: map[string][]domain.CandidatePerson{
			"Acme": {{ExternalSourceID: "p1", FullName: "Jane Roe", Title: "CEO"}},
			"Bolt": {{ExternalSourceID: "p2", FullName: "John Doe", Title: "CTO"}},
		}},
		failFor: "Broken",
		err:     boom,
	}
	reporter := &fakeReporter{}

	p := NewPipeline(PipelineDeps{Source: source, Reporter: reporter, Workers: 2})
	companies := []domain.Company{
		{Name: "Acme", Website: "acme.com"},
		{Name: "Broken", Website: "broken.com"},
		{Name: "Bolt", Website: "bolt.com"},
	}

	groups, summary := p.ProcessBatch(context.Background(), companies)

	assert.Len(t, groups, 2, "one company's failure never aborts the batch")
	assert.Equal(t, 3, summary.Companies)
	assert.Equal(t, 1, summary.CompaniesFailed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "Broken", summary.Failures[0].Company)
	assert.Contains(t, summary.Failures[0].Reason, "provider exploded")
	assert.NotEmpty(t, summary.RunID)

	require.Len(t, reporter.summaries, 1)
	assert.Equal(t, summary.RunID, reporter.summaries[0].RunID)
}

type failingSource struct {
	good    *fakeSource
	failFor string
	err     error
}

func (f *failingSource) FindCandidates(ctx context.Context, company domain.Company) ([]domain.CandidatePerson, []domain.EnrichmentAttempt, error) {
	if company.Name == f.failFor {
		return nil, nil, f.err
	}
	return f.good.FindCandidates(ctx, company)
}

func TestProcessBatchStopsAtCostCeiling(t *testing.T) {
	t.Parallel()

	tracker := budget.NewTracker(nil, 5)
	require.True(t, tracker.Charge("coresignal", domain.OpSearch, 5))
	require.True(t, tracker.TotalExhausted())

	source := &fakeSource{candidates: map[string][]domain.CandidatePerson{}}
	p := NewPipeline(PipelineDeps{Source: source, Tracker: tracker, Workers: 1})

	groups, summary := p.ProcessBatch(context.Background(), []domain.Company{
		{Name: "Acme", Website: "acme.com"},
	})

	assert.Empty(t, groups, "no company starts once the run ceiling is hit")
	assert.True(t, summary.StoppedCostCeiling)
	assert.Equal(t, 0, summary.Companies)
	assert.Equal(t, 5, summary.TotalCredits)
}
