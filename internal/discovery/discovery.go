// Package discovery resolves a target company to a deduplicated list of
// candidate people via the configured provider waterfall.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adrata/buyergroup/internal/budget"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/domainmatch"
	"github.com/adrata/buyergroup/internal/provider"
)

// Source finds employees through provider search+collect, validating
// membership with the domain matcher as candidates come in.
type Source struct {
	registry *provider.Registry
	priority []string
	tracker  *budget.Tracker
	pageCap  int
	logger   *slog.Logger
	now      func() time.Time
}

// NewSource wires the provider registry with the configured discovery
// priority order.
func NewSource(reg *provider.Registry, priority []string, tracker *budget.Tracker, pageCap int, log *slog.Logger) *Source {
	return &Source{
		registry: reg,
		priority: priority,
		tracker:  tracker,
		pageCap:  pageCap,
		logger:   log,
		now:      time.Now,
	}
}

// FindCandidates tries discovery providers in priority order and returns
// the first provider's usable candidate list plus the audit trail of
// every provider call made. The output never contains two candidates with
// the same ExternalSourceID; ordering is not stable across runs.
// Candidates whose email fails the domain match are marked excluded
// rather than dropped, preserving auditability.
func (s *Source) FindCandidates(ctx context.Context, company domain.Company) ([]domain.CandidatePerson, []domain.EnrichmentAttempt, error) {
	var trail []domain.EnrichmentAttempt

	clients := s.registry.Waterfall(s.priority)
	if len(clients) == 0 {
		return nil, nil, fmt.Errorf("discovery: no enabled providers for company %s", company.Name)
	}

	var lastErr error
	for _, client := range clients {
		candidates, attempts, err := s.discoverWith(ctx, client, company)
		trail = append(trail, attempts...)
		if err != nil {
			lastErr = err
			s.warn("discovery provider failed", "provider", client.Name(), "company", company.Name, "error", err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		return s.validateMembership(company, candidates), trail, nil
	}

	if lastErr != nil {
		return nil, trail, fmt.Errorf("discover company %s: %w", company.Name, lastErr)
	}
	return nil, trail, nil
}

// discoverWith runs one provider's search+collect cycle.
func (s *Source) discoverWith(ctx context.Context, client provider.Client, company domain.Company) ([]domain.CandidatePerson, []domain.EnrichmentAttempt, error) {
	var attempts []domain.EnrichmentAttempt

	searchCost := client.Cost(domain.OpSearch)
	if !s.tracker.Charge(client.Name(), domain.OpSearch, searchCost) {
		attempts = append(attempts, s.attempt("", client.Name(), domain.OpSearch, domain.OutcomeSkippedBudget, 0))
		return nil, attempts, nil
	}

	query := provider.Query{
		CompanyName:     company.Name,
		CanonicalDomain: company.CanonicalDomain,
		LinkedInID:      company.LinkedInURL,
		ExactPhrase:     true,
		PageCap:         s.pageCap,
	}

	ids, err := client.Search(ctx, query)
	if err != nil {
		if errors.Is(err, provider.ErrNoResult) {
			attempts = append(attempts, s.attempt("", client.Name(), domain.OpSearch, domain.OutcomeNoResult, searchCost))
			return nil, attempts, nil
		}
		attempts = append(attempts, s.attempt("", client.Name(), domain.OpSearch, domain.OutcomeProviderError, searchCost))
		return nil, attempts, err
	}
	attempts = append(attempts, s.attempt("", client.Name(), domain.OpSearch, domain.OutcomeSuccess, searchCost))

	seen := map[string]struct{}{}
	var candidates []domain.CandidatePerson
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		collectCost := client.Cost(domain.OpCollect)
		if !s.tracker.Charge(client.Name(), domain.OpCollect, collectCost) {
			attempts = append(attempts, s.attempt(id, client.Name(), domain.OpCollect, domain.OutcomeSkippedBudget, 0))
			continue
		}

		profile, err := client.Collect(ctx, id)
		if err != nil {
			outcome := domain.OutcomeProviderError
			if errors.Is(err, provider.ErrNoResult) {
				outcome = domain.OutcomeNoResult
			}
			attempts = append(attempts, s.attempt(id, client.Name(), domain.OpCollect, outcome, collectCost))
			s.warn("collect failed", "provider", client.Name(), "id", id, "error", err)
			continue
		}
		attempts = append(attempts, s.attempt(id, client.Name(), domain.OpCollect, domain.OutcomeSuccess, collectCost))

		if profile.ExternalSourceID == "" {
			profile.ExternalSourceID = id
		}
		candidates = append(candidates, domain.CandidatePerson{
			ExternalSourceID: profile.ExternalSourceID,
			FullName:         profile.FullName,
			Title:            profile.Title,
			CompanyName:      profile.CompanyName,
			EmailCandidates:  profile.Emails,
			PhoneCandidates:  profile.Phones,
			LinkedInURL:      profile.LinkedInURL,
			LastUpdated:      profile.LastUpdated,
		})
	}

	return candidates, attempts, nil
}

// validateMembership applies the domain matcher to every candidate with
// an available email. Mismatches are excluded, not discarded.
func (s *Source) validateMembership(company domain.Company, candidates []domain.CandidatePerson) []domain.CandidatePerson {
	for i := range candidates {
		email := candidates[i].Email()
		if email == "" {
			continue
		}
		emailDomain, ok := domainmatch.Extract(email)
		if ok && domainmatch.Match(emailDomain, company.CanonicalDomain) {
			continue
		}
		candidates[i].Excluded = true
		candidates[i].ExclusionReason = domain.ExclusionDomainMismatch
		s.warn("candidate excluded", "person", candidates[i].ExternalSourceID,
			"email_domain", emailDomain, "canonical_domain", company.CanonicalDomain)
	}
	return candidates
}

func (s *Source) attempt(personID, providerName string, op domain.Operation, outcome domain.AttemptOutcome, cost int) domain.EnrichmentAttempt {
	return domain.EnrichmentAttempt{
		PersonID:   personID,
		Provider:   providerName,
		Operation:  op,
		Outcome:    outcome,
		CreditCost: cost,
		At:         s.now(),
	}
}

func (s *Source) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
