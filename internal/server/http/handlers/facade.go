package handlers

import (
	"context"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/fulfillment"
	"github.com/polkiloo/vipm-fulfillment/internal/migration"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
)

// OrderFacade runs fulfillment passes and draft validation on marketplace orders.
type OrderFacade interface {
	ProcessOrderByID(ctx context.Context, orderID string) (fulfillment.Outcome, error)
	ValidateOrder(ctx context.Context, order *model.Order) (bool, error)
}

// TransferFacade manages batch migration records.
type TransferFacade interface {
	RegisterTransfer(ctx context.Context, in model.TransferRegistration) (*model.Transfer, error)
	Transfers(ctx context.Context, productID string, status model.TransferStatus) ([]model.Transfer, error)
}

// JobFacade triggers the batch jobs on demand.
type JobFacade interface {
	ProcessTransfers(ctx context.Context) (migration.Report, error)
	CheckRunningTransfers(ctx context.Context) (migration.Report, error)
	SyncPrices(ctx context.Context, ids []string, opts pricesync.Options) (pricesync.Report, error)
}

// FulfillmentFacade aggregates the full set of operations used across handlers.
type FulfillmentFacade interface {
	OrderFacade
	TransferFacade
	JobFacade
}

// HealthChecker reports readiness of a backing service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
