// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler refreshes the OFAC and UN lists on a cron schedule
// while the server runs.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"github.com/pdiddy/sanctions-engine/internal/pipeline"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// Refresher refreshes the external lists.
type Refresher interface {
	RefreshOFAC(ctx context.Context) (*pipeline.RefreshResult, error)
	RefreshUN(ctx context.Context) (*pipeline.RefreshResult, error)
}

// refreshTimeout bounds one scheduled refresh of both lists.
const refreshTimeout = 5 * time.Minute

// Scheduler runs list refreshes on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	logger    *slog.Logger
	cfg       types.SchedulerConfig
}

// New validates the schedule in cfg and returns a Scheduler.
func New(cfg types.SchedulerConfig, r Refresher, logger *slog.Logger) (*Scheduler, error) {
	if cfg.RefreshCron == "" {
		cfg.RefreshCron = "0 6 * * *"
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:      cron.New(),
		refresher: r,
		logger:    logger,
		cfg:       cfg,
	}
	_, err := s.cron.AddFunc(cfg.RefreshCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		s.RefreshAll(ctx)
	})
	if err != nil {
		return nil, errors.Wrapf(types.ErrBadParameter, "refresh cron %q: %v", cfg.RefreshCron, err)
	}
	return s, nil
}

// RefreshAll refreshes both lists and returns how many refreshes failed.
// Failures are logged.
func (s *Scheduler) RefreshAll(ctx context.Context) int {
	failed := 0
	if _, err := s.refresher.RefreshOFAC(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled OFAC refresh failed", "error", err)
		failed++
	}
	if _, err := s.refresher.RefreshUN(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled UN refresh failed", "error", err)
		failed++
	}
	return failed
}

// Run starts the schedule, optionally refreshing once first, and blocks
// until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.RunOnStart {
		s.logger.InfoContext(ctx, "running first list refresh immediately")
		s.RefreshAll(ctx)
	}

	s.logger.InfoContext(ctx, "starting scheduler", "cron", s.cfg.RefreshCron)
	s.cron.Start()

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// Next returns the next scheduled refresh time after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	sched, err := cron.ParseStandard(s.cfg.RefreshCron)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(now)
}
