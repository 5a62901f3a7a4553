package report

import (
	"strings"
	"testing"
	"time"

	"github.com/adrata/buyergroup/internal/domain"
)

func TestFormatSummary(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	summary := domain.RunSummary{
		RunID:              "run-42",
		Companies:          3,
		CompaniesFailed:    1,
		PeopleDiscovered:   25,
		PeopleExcluded:     4,
		GroupsAssembled:    2,
		EmptyGroups:        1,
		TotalCredits:       180,
		CreditsByProvider:  map[string]int{"coresignal": 120},
		Failures:           []domain.CompanyFailure{{Company: "Broken", Reason: "no enabled providers"}},
		StoppedCostCeiling: true,
		StartedAt:          started,
		FinishedAt:         started.Add(95 * time.Second),
	}

	digest := FormatSummary(summary)

	for _, want := range []string{
		"run-42",
		"Companies: 3 (1 failed)",
		"People: 25 discovered, 4 excluded",
		"Groups: 2 assembled, 1 empty",
		"Credits: 180 total",
		"coresignal: 120",
		"stopped at the cost ceiling",
		"Failed Broken: no enabled providers",
		"Duration: 1m35s",
	} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest missing %q:\n%s", want, digest)
		}
	}
}
