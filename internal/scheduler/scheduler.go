package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/polkiloo/vipm-fulfillment/internal/migration"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
)

// MigrationRunner runs both batch migration passes.
type MigrationRunner interface {
	ProcessTransfers(ctx context.Context) (migration.Report, error)
	CheckRunningTransfers(ctx context.Context) (migration.Report, error)
}

// PriceSyncer synchronizes agreements whose next sync date is due.
type PriceSyncer interface {
	SyncDue(ctx context.Context, opts pricesync.Options) (pricesync.Report, error)
}

// Schedules holds the cron expressions of the periodic jobs.
type Schedules struct {
	Migration string
	PriceSync string
	Allow3YC  bool
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	migration MigrationRunner
	prices    PriceSyncer
	schedules Schedules
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(m MigrationRunner, p PriceSyncer, schedules Schedules, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      c,
		migration: m,
		prices:    p,
		schedules: schedules,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedules.Migration, s.runMigration); err != nil {
		return fmt.Errorf("schedule migration job: %w", err)
	}
	s.logger.Info("scheduled migration job", slog.String("schedule", s.schedules.Migration))

	if _, err := s.cron.AddFunc(s.schedules.PriceSync, s.runPriceSync); err != nil {
		return fmt.Errorf("schedule price sync job: %w", err)
	}
	s.logger.Info("scheduled price sync job", slog.String("schedule", s.schedules.PriceSync))

	s.cron.Start()
	return nil
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runMigration() {
	started, err := s.migration.ProcessTransfers(s.ctx)
	if err != nil {
		s.logger.Error("process transfers failed", slog.String("error", err.Error()))
	}
	checked, err := s.migration.CheckRunningTransfers(s.ctx)
	if err != nil {
		s.logger.Error("check running transfers failed", slog.String("error", err.Error()))
	}
	s.logger.Info("migration job finished",
		slog.Int("started", started.Seen),
		slog.Int("checked", checked.Seen),
	)
}

func (s *Scheduler) runPriceSync() {
	report, err := s.prices.SyncDue(s.ctx, pricesync.Options{Allow3YC: s.schedules.Allow3YC})
	if err != nil {
		s.logger.Error("price sync failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("price sync job finished",
		slog.Int("synced", report.Synced),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
}
