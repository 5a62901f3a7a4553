// Package enrich fills missing email/phone through an ordered provider
// fallback governed by the run credit budget.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adrata/buyergroup/internal/budget"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/provider"
)

// Waterfall tries enabled providers in priority order for each missing
// contact field, stopping at the first usable value. Calls are serialized
// with a fixed inter-call delay to respect provider rate limits.
type Waterfall struct {
	registry *provider.Registry
	priority []string
	tracker  *budget.Tracker
	delay    time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New wires the enrichment waterfall.
func New(reg *provider.Registry, priority []string, tracker *budget.Tracker, delay time.Duration, log *slog.Logger) *Waterfall {
	return &Waterfall{
		registry: reg,
		priority: priority,
		tracker:  tracker,
		delay:    delay,
		logger:   log,
		now:      time.Now,
	}
}

// EnrichPerson attempts to fill the person's missing email and phone.
// Every provider call, attempted or skipped, is recorded in the returned
// append-only trail. Failing with every provider is not an error: the
// person is returned without the missing field. The only error returned
// is context cancellation, checked between calls, never mid-call.
func (w *Waterfall) EnrichPerson(ctx context.Context, company domain.Company, person domain.CandidatePerson) (domain.CandidatePerson, []domain.EnrichmentAttempt, error) {
	var trail []domain.EnrichmentAttempt

	if person.Email() != "" && person.Phone() != "" {
		return person, nil, nil
	}

	req := provider.EnrichRequest{
		FullName:        person.FullName,
		CanonicalDomain: company.CanonicalDomain,
		LinkedInURL:     person.LinkedInURL,
	}

	for _, client := range w.registry.Waterfall(w.priority) {
		if person.Email() != "" && person.Phone() != "" {
			break
		}
		if err := ctx.Err(); err != nil {
			return person, trail, err
		}

		cost := client.Cost(domain.OpEnrich)
		if w.tracker.Exhausted(client.Name(), domain.OpEnrich, cost) ||
			!w.tracker.Charge(client.Name(), domain.OpEnrich, cost) {
			trail = append(trail, w.attempt(person, client.Name(), domain.OutcomeSkippedBudget, 0))
			continue
		}

		fields, err := client.Enrich(ctx, req)
		switch {
		case err == nil && fields.Email == "" && fields.Phone == "":
			trail = append(trail, w.attempt(person, client.Name(), domain.OutcomeNoResult, cost))
		case err == nil:
			trail = append(trail, w.attempt(person, client.Name(), domain.OutcomeSuccess, cost))
			person = applyFields(person, fields)
		case errors.Is(err, provider.ErrNoResult):
			trail = append(trail, w.attempt(person, client.Name(), domain.OutcomeNoResult, cost))
		default:
			trail = append(trail, w.attempt(person, client.Name(), domain.OutcomeProviderError, cost))
			w.warn("enrich call failed", "provider", client.Name(), "person", person.ExternalSourceID, "error", err)
		}

		if err := w.pause(ctx); err != nil {
			return person, trail, err
		}
	}

	return person, trail, nil
}

// applyFields merges returned contact fields into still-missing slots.
// A provider answering with both fields fills both; existing values are
// never overwritten.
func applyFields(person domain.CandidatePerson, fields provider.ContactFields) domain.CandidatePerson {
	if person.Email() == "" && fields.Email != "" {
		person.EmailCandidates = append(person.EmailCandidates, fields.Email)
	}
	if person.Phone() == "" && fields.Phone != "" {
		person.PhoneCandidates = append(person.PhoneCandidates, fields.Phone)
	}
	return person
}

// pause enforces the fixed inter-call delay, abandoning the wait (not the
// person) when the run is cancelled.
func (w *Waterfall) pause(ctx context.Context) error {
	if w.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(w.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Waterfall) attempt(person domain.CandidatePerson, providerName string, outcome domain.AttemptOutcome, cost int) domain.EnrichmentAttempt {
	return domain.EnrichmentAttempt{
		PersonID:   person.ExternalSourceID,
		Provider:   providerName,
		Operation:  domain.OpEnrich,
		Outcome:    outcome,
		CreditCost: cost,
		At:         w.now(),
	}
}

func (w *Waterfall) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
