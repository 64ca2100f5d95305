package migration

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
)

// Module provides the batch migration service.
var Module = fx.Provide(newService)

type serviceParams struct {
	fx.In

	Config    *config.Config
	Backend   vipm.Client
	Transfers repository.TransferRepository
	Offers    repository.OfferRepository
	Publisher events.Publisher
	Logger    *slog.Logger
}

func newService(p serviceParams) *Service {
	limits := Limits{
		RunningRetries: p.Config.MigrationRunningRetries,
		Reschedules:    p.Config.MigrationReschedules,
	}
	return NewService(p.Backend, p.Transfers, p.Offers, p.Publisher, p.Config.ProductIDs, limits, p.Logger.With(slog.String("component", "migration")))
}
