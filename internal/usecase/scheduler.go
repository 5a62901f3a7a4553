package usecase

import (
	"context"
	"time"

	"github.com/adrata/buyergroup/internal/budget"
	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/ports"
)

// Scheduler wires the interval driver with recurring batch runs over the
// configured company list.
type Scheduler struct {
	driver    ports.Scheduler
	pipeline  *Pipeline
	tracker   *budget.Tracker
	companies []domain.Company
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, tracker *budget.Tracker, companies []domain.Company) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, tracker: tracker, companies: companies}
}

// Start registers the batch run with the provided scheduler. Credit
// ceilings are run-scoped, so each trigger starts from zero spend.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(time.Time) {
		if s.tracker != nil {
			s.tracker.Reset()
		}
		s.pipeline.ProcessBatch(ctx, s.companies)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
