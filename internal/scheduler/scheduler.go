package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs a duplicate removal sweep
type Sweeper interface {
	RemoveDuplicates(ctx context.Context) (*models.DedupResult, error)
}

// Scheduler runs duplicate sweeps on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     *logrus.Logger
}

// NewScheduler registers the sweep job for schedule.
// schedule accepts standard five-field cron expressions and descriptors such as @daily.
func NewScheduler(schedule string, sweeper Sweeper, timeout time.Duration, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		timeout: timeout,
		log:     log,
	}
	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return nil, fmt.Errorf("invalid dedup schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.sweeper.RemoveDuplicates(ctx)
	if err != nil {
		s.log.WithError(err).Error("Scheduled duplicate sweep failed")
		return
	}
	s.log.Infof("Scheduled duplicate sweep: %s", result.Message)
}

// Start begins running scheduled sweeps in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("Duplicate sweep scheduled, next run at %s", s.cron.Entries()[0].Next.Format(time.RFC3339))
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for running duplicate sweep")
	}
}
