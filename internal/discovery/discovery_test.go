package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrata/buyergroup/internal/budget"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/provider"
)

type fakeDiscovery struct {
	name      string
	enabled   bool
	ids       []string
	searchErr error
	profiles  map[string]provider.Profile
	searches  int
	collects  int
}

func (f *fakeDiscovery) Name() string                 { return f.name }
func (f *fakeDiscovery) Enabled() bool                { return f.enabled }
func (f *fakeDiscovery) Cost(op domain.Operation) int { return 1 }

func (f *fakeDiscovery) Search(context.Context, provider.Query) ([]string, error) {
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.ids, nil
}

func (f *fakeDiscovery) Collect(_ context.Context, id string) (provider.Profile, error) {
	f.collects++
	profile, ok := f.profiles[id]
	if !ok {
		return provider.Profile{}, provider.ErrNoResult
	}
	return profile, nil
}

func (f *fakeDiscovery) Enrich(context.Context, provider.EnrichRequest) (provider.ContactFields, error) {
	return provider.ContactFields{}, provider.ErrNoResult
}

func newSource(tracker *budget.Tracker, clients ...*fakeDiscovery) *Source {
	reg := provider.NewRegistry()
	priority := make([]string, 0, len(clients))
	for _, c := range clients {
		reg.Register(c)
		priority = append(priority, c.name)
	}
	return NewSource(reg, priority, tracker, 200, nil)
}

var acme = domain.Company{Name: "Acme", CanonicalDomain: "acme.com"}

func TestFindCandidatesDedupesByExternalID(t *testing.T) {
	t.Parallel()

	src := &fakeDiscovery{
		name:    "coresignal",
		enabled: true,
		ids:     []string{"p1", "p2", "p1", "p1"},
		profiles: map[string]provider.Profile{
			"p1": {ExternalSourceID: "p1", FullName: "Jane Roe", Title: "CEO"},
			"p2": {ExternalSourceID: "p2", FullName: "John Doe", Title: "CTO"},
		},
	}

	candidates, trail, err := newSource(budget.NewTracker(nil, 0), src).FindCandidates(context.Background(), acme)
	require.NoError(t, err)

	require.Len(t, candidates, 2, "duplicate search hits collapse to one candidate")
	assert.Equal(t, 2, src.collects, "each unique id is collected exactly once")

	// 1 search + 2 collects, all billed.
	require.Len(t, trail, 3)
	assert.Equal(t, domain.OpSearch, trail[0].Operation)
	assert.Equal(t, domain.OutcomeSuccess, trail[0].Outcome)
}

func TestFindCandidatesMarksDomainMismatch(t *testing.T) {
	t.Parallel()

	src := &fakeDiscovery{
		name:    "coresignal",
		enabled: true,
		ids:     []string{"p1", "p2", "p3"},
		profiles: map[string]provider.Profile{
			"p1": {ExternalSourceID: "p1", FullName: "Jane Roe", Emails: []string{"jane@acme.com"}},
			"p2": {ExternalSourceID: "p2", FullName: "John Doe", Emails: []string{"john@mail.acme.com"}},
			"p3": {ExternalSourceID: "p3", FullName: "Max Glass", Emails: []string{"max@acme.cz"}},
		},
	}

	candidates, _, err := newSource(budget.NewTracker(nil, 0), src).FindCandidates(context.Background(), acme)
	require.NoError(t, err)
	require.Len(t, candidates, 3, "mismatched candidates are kept, marked, never dropped")

	byID := map[string]domain.CandidatePerson{}
	for _, c := range candidates {
		byID[c.ExternalSourceID] = c
	}
	assert.False(t, byID["p1"].Excluded)
	assert.False(t, byID["p2"].Excluded, "subdomain email shares the root domain")
	assert.True(t, byID["p3"].Excluded)
	assert.Equal(t, domain.ExclusionDomainMismatch, byID["p3"].ExclusionReason)
}

func TestFindCandidatesFallsThroughProviders(t *testing.T) {
	t.Parallel()

	broken := &fakeDiscovery{
		name:      "coresignal",
		enabled:   true,
		searchErr: &provider.UnavailableError{Provider: "coresignal", Status: "503"},
	}
	empty := &fakeDiscovery{name: "brightdata", enabled: true}
	working := &fakeDiscovery{
		name:    "teampage",
		enabled: true,
		ids:     []string{"p1"},
		profiles: map[string]provider.Profile{
			"p1": {ExternalSourceID: "p1", FullName: "Jane Roe"},
		},
	}

	candidates, trail, err := newSource(budget.NewTracker(nil, 0), broken, empty, working).FindCandidates(context.Background(), acme)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, 1, broken.searches)
	assert.Equal(t, 1, empty.searches)
	assert.Equal(t, 1, working.searches)

	outcomes := make([]domain.AttemptOutcome, 0, len(trail))
	for _, a := range trail {
		outcomes = append(outcomes, a.Outcome)
	}
	assert.Contains(t, outcomes, domain.OutcomeProviderError)
}

func TestFindCandidatesSkipsDisabled(t *testing.T) {
	t.Parallel()

	disabled := &fakeDiscovery{name: "coresignal", enabled: false, ids: []string{"never"}}
	working := &fakeDiscovery{
		name:    "teampage",
		enabled: true,
		ids:     []string{"p1"},
		profiles: map[string]provider.Profile{
			"p1": {ExternalSourceID: "p1"},
		},
	}

	candidates, _, err := newSource(budget.NewTracker(nil, 0), disabled, working).FindCandidates(context.Background(), acme)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, 0, disabled.searches)
}

func TestFindCandidatesNoEnabledProviders(t *testing.T) {
	t.Parallel()

	disabled := &fakeDiscovery{name: "coresignal", enabled: false}
	_, _, err := newSource(budget.NewTracker(nil, 0), disabled).FindCandidates(context.Background(), acme)
	assert.Error(t, err)
}

func TestFindCandidatesSearchBudgetSkip(t *testing.T) {
	t.Parallel()

	src := &fakeDiscovery{name: "coresignal", enabled: true, ids: []string{"p1"}}
	tracker := budget.NewTracker([]budget.Ceiling{
		{Provider: "coresignal", Operation: domain.OpSearch, Limit: 0},
	}, 0)

	candidates, trail, err := newSource(tracker, src).FindCandidates(context.Background(), acme)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, 0, src.searches, "a refused charge means the call is never made")
	require.Len(t, trail, 1)
	assert.Equal(t, domain.OutcomeSkippedBudget, trail[0].Outcome)
	assert.Equal(t, 0, trail[0].CreditCost)
}

func TestFindCandidatesCollectBudgetCeiling(t *testing.T) {
	t.Parallel()

	src := &fakeDiscovery{
		name:    "coresignal",
		enabled: true,
		ids:     []string{"p1", "p2", "p3"},
		profiles: map[string]provider.Profile{
			"p1": {ExternalSourceID: "p1"},
			"p2": {ExternalSourceID: "p2"},
			"p3": {ExternalSourceID: "p3"},
		},
	}
	tracker := budget.NewTracker([]budget.Ceiling{
		{Provider: "coresignal", Operation: domain.OpCollect, Limit: 2},
	}, 0)

	candidates, trail, err := newSource(tracker, src).FindCandidates(context.Background(), acme)
	require.NoError(t, err)
	assert.Len(t, candidates, 2, "the third collect is skipped at the ceiling")
	assert.Equal(t, 2, src.collects)

	skipped := 0
	for _, a := range trail {
		if a.Outcome == domain.OutcomeSkippedBudget {
			skipped++
			assert.Equal(t, domain.OpCollect, a.Operation)
		}
	}
	assert.Equal(t, 1, skipped)
}
