// Package scheduler drives recurring pipeline runs.
package scheduler

import (
	"context"
	"time"

	"github.com/adrata/buyergroup/internal/ports"
)

// IntervalScheduler runs the job immediately and then on a fixed
// interval until stopped.
type IntervalScheduler struct {
	interval time.Duration
	location *time.Location
	stop     chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a ticker-based scheduler. An interval of
// zero defaults to 24 hours.
func NewIntervalScheduler(interval time.Duration, location *time.Location) *IntervalScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if location == nil {
		location = time.UTC
	}
	return &IntervalScheduler{interval: interval, location: location}
}

// Start begins ticking. The first run fires immediately.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job(time.Now().In(s.location))
		for {
			select {
			case t := <-ticker.C:
				job(t.In(s.location))
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *IntervalScheduler) Stop(context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
