package fulfillment

import (
	"context"
	"log/slog"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// Engine runs one fulfillment pass of an order.
type Engine interface {
	Fulfill(ctx context.Context, order *model.Order) (Outcome, error)
}

// Fulfiller routes orders to the engine of their type.
type Fulfiller struct {
	engines map[model.OrderType]Engine
	logger  *slog.Logger
}

// NewFulfiller registers the purchase, change and transfer engines.
func NewFulfiller(purchase *PurchaseEngine, change *ChangeEngine, transfer *TransferEngine, logger *slog.Logger) *Fulfiller {
	return &Fulfiller{
		engines: map[model.OrderType]Engine{
			model.OrderTypePurchase: purchase,
			model.OrderTypeChange:   change,
			model.OrderTypeTransfer: transfer,
		},
		logger: logger,
	}
}

// Fulfill runs one pass. Unknown order types are skipped.
func (f *Fulfiller) Fulfill(ctx context.Context, order *model.Order) (Outcome, error) {
	engine, ok := f.engines[order.Type]
	if !ok {
		f.logger.Warn("no fulfillment flow for order type",
			slog.String("order", order.ID),
			slog.String("type", string(order.Type)),
		)
		return skipped("unsupported order type " + string(order.Type)), nil
	}

	out, err := engine.Fulfill(ctx, order)
	if err != nil {
		f.logger.Error("fulfillment pass failed",
			slog.String("order", order.ID),
			slog.String("error", err.Error()),
		)
		return out, err
	}
	f.logger.Info("fulfillment pass finished",
		slog.String("order", order.ID),
		slog.String("outcome", string(out.Kind)),
		slog.String("reason", out.Reason),
	)
	return out, nil
}
