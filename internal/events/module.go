package events

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
)

// Module provides the event publisher and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(newPublisher),
	fx.Invoke(registerLifecycle),
)

func newPublisher(cfg *config.Config, logger *slog.Logger) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka brokers not configured, events go to the log")
		return NewLogPublisher(logger)
	}
	return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func registerLifecycle(lc fx.Lifecycle, p Publisher) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return p.Close()
		},
	})
}
