package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
	"github.com/polkiloo/vipm-fulfillment/internal/fulfillment"
	"github.com/polkiloo/vipm-fulfillment/internal/lock"
	"github.com/polkiloo/vipm-fulfillment/internal/migration"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
	"github.com/polkiloo/vipm-fulfillment/internal/scheduler"
	"github.com/polkiloo/vipm-fulfillment/internal/usecase"
	"github.com/polkiloo/vipm-fulfillment/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		newFulfillmentFacade,
		newHTTPServer,
		newOrderProcessor,
	),
	fx.Invoke(registerLifecycle),
)

type facadeParams struct {
	fx.In

	Config      *config.Config
	Marketplace marketplace.Client
	Fulfiller   *fulfillment.Fulfiller
	Validator   *fulfillment.Validator
	Locker      lock.Locker
	Publisher   events.Publisher
	Migration   *migration.Service
	Prices      *pricesync.Syncer
	Transfers   *usecase.TransferUseCase
	Logger      *slog.Logger
}

func newFulfillmentFacade(p facadeParams) *FulfillmentFacade {
	return NewFulfillmentFacade(Deps{
		Marketplace: p.Marketplace,
		Fulfiller:   p.Fulfiller,
		Validator:   p.Validator,
		Locker:      p.Locker,
		Publisher:   p.Publisher,
		Migration:   p.Migration,
		Prices:      p.Prices,
		Transfers:   p.Transfers,
		Products:    p.Config.ProductIDs,
		LockTTL:     p.Config.OrderLockTTL,
		Logger:      p.Logger.With(slog.String("component", "facade")),
	})
}

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type workerParams struct {
	fx.In

	Facade *FulfillmentFacade
	Config *config.Config
	Logger *slog.Logger
}

func newOrderProcessor(p workerParams) *worker.OrderProcessor {
	return worker.NewOrderProcessor(
		p.Facade,
		p.Config.OrderPollInterval,
		p.Config.MaxOrdersBatch,
		p.Config.WorkerPoolSize,
		p.Logger.With(slog.String("component", "worker")),
	)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Worker     *worker.OrderProcessor
	Scheduler  *scheduler.Scheduler
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting vipm fulfillment",
				slog.String("addr", p.Server.Addr),
				slog.Any("products", p.Config.ProductIDs),
			)
			if err := p.Scheduler.Start(); err != nil {
				return err
			}
			// the start context expires once OnStart returns
			p.Worker.Start(context.Background())
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Worker.Stop()

			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			if err := p.Scheduler.Stop(shutdownCtx); err != nil {
				p.Logger.Warn("scheduler did not stop in time", slog.String("error", err.Error()))
			}
			if err := p.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("vipm fulfillment stopped")
			return nil
		},
	})
}
