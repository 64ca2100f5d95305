package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/app"
	pkgAuth "github.com/polkiloo/vipm-fulfillment/internal/pkg/auth"
	"github.com/polkiloo/vipm-fulfillment/internal/storage/postgres"
)

// Module registers HTTP router construction for fx runtime.
var Module = fx.Provide(newRouter)

type routerParams struct {
	fx.In

	Facade     *app.FulfillmentFacade
	Keys       pkgAuth.KeyVerifier
	Signatures pkgAuth.SignatureVerifier
	Storage    *postgres.Storage
	Logger     *slog.Logger
}

func newRouter(p routerParams) *gin.Engine {
	return Setup(Deps{
		Facade:     p.Facade,
		Keys:       p.Keys,
		Signatures: p.Signatures,
		Health:     p.Storage,
		Logger:     p.Logger.With(slog.String("component", "http")),
	})
}
