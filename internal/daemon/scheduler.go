package daemon

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler fires the periodic publish trigger.
type Scheduler struct {
	inner    gocron.Scheduler
	interval time.Duration
}

// NewScheduler creates a scheduler that calls fn every interval.
func NewScheduler(interval time.Duration, fn func()) (*Scheduler, error) {
	inner, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName("scheduled-publish"),
	)
	if err != nil {
		return nil, err
	}
	return &Scheduler{inner: inner, interval: interval}, nil
}

// Start begins firing the trigger in the background.
func (s *Scheduler) Start() {
	s.inner.Start()
	slog.Info("Periodic publish schedule started", "every", s.interval)
}

// Stop shuts the scheduler down, waiting for a running job callback.
func (s *Scheduler) Stop() error {
	return s.inner.Shutdown()
}
