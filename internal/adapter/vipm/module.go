package vipm

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
)

// Module exposes the licensing backend client to the fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.BackendURL, p.Config.BackendToken, p.Logger)
}
