package usecase

import (
	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
)

// Module provides core business use cases to the fx container.
var Module = fx.Provide(
	newTransferUseCase,
)

func newTransferUseCase(cfg *config.Config, transfers repository.TransferRepository) *TransferUseCase {
	return NewTransferUseCase(transfers, cfg.ProductIDs)
}
