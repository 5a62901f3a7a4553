package report

import (
	"context"
	"log/slog"

	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/ports"
)

// LogReporter writes the run summary to the structured log. Used when no
// Telegram channel is configured so every run still leaves a report.
type LogReporter struct {
	logger *slog.Logger
}

var _ ports.Reporter = (*LogReporter)(nil)

// NewLogReporter wires the logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// PublishSummary logs the structured run summary.
func (l *LogReporter) PublishSummary(_ context.Context, summary domain.RunSummary) error {
	if l.logger == nil {
		return nil
	}
	l.logger.Info("run summary",
		"run_id", summary.RunID,
		"companies", summary.Companies,
		"companies_failed", summary.CompaniesFailed,
		"people_discovered", summary.PeopleDiscovered,
		"people_excluded", summary.PeopleExcluded,
		"groups_assembled", summary.GroupsAssembled,
		"empty_groups", summary.EmptyGroups,
		"total_credits", summary.TotalCredits,
		"stopped_cost_ceiling", summary.StoppedCostCeiling,
	)
	return nil
}
