package lock

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
)

// Module provides the order locker and closes its connection on shutdown.
var Module = fx.Options(
	fx.Provide(newLocker),
	fx.Invoke(registerLifecycle),
)

func newLocker(cfg *config.Config, logger *slog.Logger) Locker {
	if cfg.RedisAddr == "" {
		logger.Info("redis not configured, using in-process order locks")
		return NewLocalLocker()
	}
	return NewRedisLocker(cfg.RedisAddr)
}

func registerLifecycle(lc fx.Lifecycle, l Locker) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return l.Close()
		},
	})
}
