/**
 * @description
 * Cron scheduler setup for the dashboard refresh and the expiry check.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Schedules holds the cron expressions for each job.
type Schedules struct {
	DashboardRefresh string
	ExpiryCheck      string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    *slog.Logger
	schedules Schedules
}

// NewScheduler creates a new scheduler instance. A job still running when
// its next tick fires is skipped, never overlapped.
func NewScheduler(jobs *Jobs, logger *slog.Logger, schedules Schedules) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		schedules: schedules,
	}
}

// Start registers the jobs and starts the cron scheduler. An empty schedule disables its job.
func (s *Scheduler) Start() {
	s.register("dashboard refresh", s.schedules.DashboardRefresh, s.jobs.RefreshDashboard)
	s.register("expiry check", s.schedules.ExpiryCheck, s.jobs.CheckExpiringSubscriptions)
	s.cron.Start()
}

func (s *Scheduler) register(name, spec string, job func()) {
	if spec == "" {
		s.logger.Info("job disabled", "job", name)
		return
	}
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", spec)
}

// Entries returns how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
