package fulfillment

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
)

// Module provides the fulfillment engines, the dispatcher and the draft validator.
var Module = fx.Provide(
	newSettings,
	newPurchaseEngine,
	newChangeEngine,
	newTransferEngine,
	newValidator,
	NewFulfiller,
)

type engineParams struct {
	fx.In

	Marketplace marketplace.Client
	Backend     vipm.Client
	Transfers   repository.TransferRepository
	Settings    Settings
	Logger      *slog.Logger
}

func newSettings(cfg *config.Config) Settings {
	return NewSettings(cfg)
}

func newPurchaseEngine(p engineParams) *PurchaseEngine {
	return NewPurchaseEngine(p.Marketplace, p.Backend, p.Settings, p.Logger)
}

func newChangeEngine(p engineParams) *ChangeEngine {
	return NewChangeEngine(p.Marketplace, p.Backend, p.Settings, p.Logger)
}

func newTransferEngine(p engineParams) *TransferEngine {
	return NewTransferEngine(p.Marketplace, p.Backend, p.Transfers, p.Settings, p.Logger)
}

func newValidator(p engineParams) *Validator {
	return NewValidator(p.Marketplace, p.Backend, p.Transfers, p.Logger)
}
