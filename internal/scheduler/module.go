package scheduler

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/migration"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
)

// Module provides the cron scheduler. Its lifecycle is owned by the app module.
var Module = fx.Provide(newScheduler)

func newScheduler(cfg *config.Config, m *migration.Service, p *pricesync.Syncer, logger *slog.Logger) *Scheduler {
	schedules := Schedules{
		Migration: cfg.MigrationSchedule,
		PriceSync: cfg.PriceSyncSchedule,
		Allow3YC:  cfg.PriceSyncAllow3YC,
	}
	return New(m, p, schedules, logger.With(slog.String("component", "scheduler")))
}
