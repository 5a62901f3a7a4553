// Package budget enforces per-provider, per-operation credit ceilings for
// one pipeline run. Counters never replenish within a run and are never
// persisted across runs.
package budget

import (
	"sync"

	"github.com/adrata/buyergroup/internal/domain"
)

// Ceiling caps one provider/operation counter. A zero ceiling disables
// the counter entirely (every charge is refused).
type Ceiling struct {
	Provider  string
	Operation domain.Operation
	Limit     int
}

type counterKey struct {
	provider  string
	operation domain.Operation
}

// Tracker holds run-scoped credit counters. Safe for concurrent use so a
// single tracker can serve a bounded worker pool; each pipeline run owns
// exactly one tracker.
type Tracker struct {
	mu       sync.Mutex
	limits   map[counterKey]int
	spent    map[counterKey]int
	total    int
	totalCap int
}

// NewTracker builds a tracker from configured ceilings. totalCap bounds
// aggregate spend across all providers; zero means no aggregate cap.
func NewTracker(ceilings []Ceiling, totalCap int) *Tracker {
	limits := make(map[counterKey]int, len(ceilings))
	for _, c := range ceilings {
		limits[counterKey{provider: c.Provider, operation: c.Operation}] = c.Limit
	}
	return &Tracker{
		limits:   limits,
		spent:    make(map[counterKey]int),
		totalCap: totalCap,
	}
}

// Charge atomically spends cost credits against the provider/operation
// counter. When the post-increment value would exceed the ceiling the
// increment is rolled back and false is returned: the call that would
// exceed is never counted as spent. Operations without a configured
// ceiling are unmetered and always allowed.
func (t *Tracker) Charge(provider string, op domain.Operation, cost int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := counterKey{provider: provider, operation: op}
	limit, metered := t.limits[key]

	t.spent[key] += cost
	t.total += cost

	over := metered && t.spent[key] > limit
	if !over && t.totalCap > 0 && t.total > t.totalCap {
		over = true
	}
	if over {
		t.spent[key] -= cost
		t.total -= cost
		return false
	}
	return true
}

// Exhausted reports whether another charge of cost would be refused,
// without spending anything.
func (t *Tracker) Exhausted(provider string, op domain.Operation, cost int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := counterKey{provider: provider, operation: op}
	if limit, metered := t.limits[key]; metered && t.spent[key]+cost > limit {
		return true
	}
	return t.totalCap > 0 && t.total+cost > t.totalCap
}

// TotalSpent returns aggregate credits consumed so far.
func (t *Tracker) TotalSpent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// TotalExhausted reports whether the run-level cost ceiling has been hit.
func (t *Tracker) TotalExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCap > 0 && t.total >= t.totalCap
}

// Reset clears all counters for a new run. Ceilings are run-scoped:
// recurring runs start from zero spend.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent = make(map[counterKey]int)
	t.total = 0
}

// Snapshot copies per-provider spend for reporting.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	byProvider := make(map[string]int)
	for key, spent := range t.spent {
		byProvider[key.provider] += spent
	}
	return byProvider
}
