package pricesync

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
)

// Module provides the agreement price syncer.
var Module = fx.Provide(newSyncer)

func newSyncer(cfg *config.Config, mpt marketplace.Client, backend vipm.Client, publisher events.Publisher, logger *slog.Logger) *Syncer {
	return NewSyncer(mpt, backend, publisher, cfg.ProductIDs, logger.With(slog.String("component", "pricesync")))
}
