package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/vipm-fulfillment/internal/pkg/auth"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/handlers"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/middleware"
)

// Deps groups the collaborators of the HTTP router.
type Deps struct {
	Facade     handlers.FulfillmentFacade
	Keys       pkgAuth.KeyVerifier
	Signatures pkgAuth.SignatureVerifier
	Health     handlers.HealthChecker
	Logger     *slog.Logger
}

// Setup configures gin router with handlers and middleware.
func Setup(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.RequestLogger(d.Logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	orderHandler := handlers.NewOrderHandler(d.Facade)
	transferHandler := handlers.NewTransferHandler(d.Facade)
	jobHandler := handlers.NewJobHandler(d.Facade)

	engine.GET("/healthz", handlers.Health(d.Health))

	api := engine.Group("/api/v1")

	events := api.Group("/events")
	events.Use(middleware.SignatureRequired(d.Signatures))
	events.POST("/orders", orderHandler.Event)

	api.POST("/orders/validate", orderHandler.Validate)

	operator := api.Group("")
	operator.Use(middleware.APIKeyRequired(d.Keys))
	operator.POST("/transfers", transferHandler.Register)
	operator.GET("/transfers", transferHandler.List)
	operator.POST("/jobs/process-transfers", jobHandler.ProcessTransfers)
	operator.POST("/jobs/check-running-transfers", jobHandler.CheckRunningTransfers)
	operator.POST("/jobs/sync-prices", jobHandler.SyncPrices)

	return engine
}
