package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	"github.com/polkiloo/vipm-fulfillment/internal/app"
	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
	"github.com/polkiloo/vipm-fulfillment/internal/fulfillment"
	"github.com/polkiloo/vipm-fulfillment/internal/lock"
	"github.com/polkiloo/vipm-fulfillment/internal/logger"
	"github.com/polkiloo/vipm-fulfillment/internal/migration"
	"github.com/polkiloo/vipm-fulfillment/internal/pkg/auth"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
	"github.com/polkiloo/vipm-fulfillment/internal/scheduler"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/router"
	"github.com/polkiloo/vipm-fulfillment/internal/storage/postgres"
	"github.com/polkiloo/vipm-fulfillment/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		marketplace.Module,
		vipm.Module,
		events.Module,
		lock.Module,
		fulfillment.Module,
		migration.Module,
		pricesync.Module,
		scheduler.Module,
		usecase.Module,
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
