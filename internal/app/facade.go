package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
	"github.com/polkiloo/vipm-fulfillment/internal/fulfillment"
	"github.com/polkiloo/vipm-fulfillment/internal/lock"
	"github.com/polkiloo/vipm-fulfillment/internal/migration"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
	"github.com/polkiloo/vipm-fulfillment/internal/usecase"
)

// OrderFulfiller runs one fulfillment pass of an order.
type OrderFulfiller interface {
	Fulfill(ctx context.Context, order *model.Order) (fulfillment.Outcome, error)
}

// DraftValidator fills and checks draft transfer orders.
type DraftValidator interface {
	ValidateTransfer(ctx context.Context, order *model.Order) (bool, error)
}

// MigrationRunner runs the batch migration passes.
type MigrationRunner interface {
	ProcessTransfers(ctx context.Context) (migration.Report, error)
	CheckRunningTransfers(ctx context.Context) (migration.Report, error)
}

// PriceSyncer runs the agreement price sync drivers.
type PriceSyncer interface {
	SyncByIDs(ctx context.Context, ids []string, opts pricesync.Options) (pricesync.Report, error)
	SyncAll(ctx context.Context, opts pricesync.Options) (pricesync.Report, error)
}

// TransferRegistry manages batch migration records.
type TransferRegistry interface {
	Register(ctx context.Context, in model.TransferRegistration) (*model.Transfer, error)
	List(ctx context.Context, productID string, status model.TransferStatus) ([]model.Transfer, error)
}

// Deps groups the collaborators of FulfillmentFacade.
type Deps struct {
	Marketplace marketplace.Client
	Fulfiller   OrderFulfiller
	Validator   DraftValidator
	Locker      lock.Locker
	Publisher   events.Publisher
	Migration   MigrationRunner
	Prices      PriceSyncer
	Transfers   TransferRegistry
	Products    []string
	LockTTL     time.Duration
	Logger      *slog.Logger
}

// FulfillmentFacade is the single entry point of the HTTP layer, the order worker and the CLI.
type FulfillmentFacade struct {
	mpt       marketplace.Client
	fulfiller OrderFulfiller
	validator DraftValidator
	locker    lock.Locker
	publisher events.Publisher
	migration MigrationRunner
	prices    PriceSyncer
	transfers TransferRegistry
	products  []string
	lockTTL   time.Duration
	logger    *slog.Logger
}

func NewFulfillmentFacade(d Deps) *FulfillmentFacade {
	return &FulfillmentFacade{
		mpt:       d.Marketplace,
		fulfiller: d.Fulfiller,
		validator: d.Validator,
		locker:    d.Locker,
		publisher: d.Publisher,
		migration: d.Migration,
		prices:    d.Prices,
		transfers: d.Transfers,
		products:  d.Products,
		lockTTL:   d.LockTTL,
		logger:    d.Logger,
	}
}

func (f *FulfillmentFacade) OrdersForProcessing(ctx context.Context, limit int) ([]model.Order, error) {
	return f.mpt.ListProcessingOrders(ctx, f.products, limit)
}

// ProcessOrder runs one locked fulfillment pass. It returns ErrLocked when another
// worker holds the order.
func (f *FulfillmentFacade) ProcessOrder(ctx context.Context, order *model.Order) error {
	_, err := f.process(ctx, order)
	return err
}

// ProcessOrderByID fetches the order and runs one pass immediately.
func (f *FulfillmentFacade) ProcessOrderByID(ctx context.Context, orderID string) (fulfillment.Outcome, error) {
	order, err := f.mpt.GetOrder(ctx, orderID)
	if err != nil {
		return fulfillment.Outcome{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if !f.serves(order.Product.ID) {
		return fulfillment.Outcome{}, domainErrors.ErrInvalidProduct
	}
	return f.process(ctx, order)
}

func (f *FulfillmentFacade) process(ctx context.Context, order *model.Order) (fulfillment.Outcome, error) {
	release, err := f.locker.Acquire(ctx, lock.OrderKey(order.ID), f.lockTTL)
	if err != nil {
		return fulfillment.Outcome{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			f.logger.Warn("release order lock failed", slog.String("order", order.ID), slog.String("error", err.Error()))
		}
	}()

	out, err := f.fulfiller.Fulfill(ctx, order)
	if err != nil {
		return out, err
	}

	payload := events.OrderOutcomePayload{
		OrderID:   order.ID,
		OrderType: string(order.Type),
		ProductID: order.Product.ID,
		Outcome:   string(out.Kind),
		Reason:    out.Reason,
	}
	if err := events.Emit(ctx, f.publisher, events.EventOrderFulfilled, order.ID, payload); err != nil {
		f.logger.Warn("publish order outcome failed", slog.String("order", order.ID), slog.String("error", err.Error()))
	}
	return out, nil
}

// ValidateOrder validates a draft order in place and reports whether it carries errors.
// Only transfer orders need validation; other types are returned untouched.
func (f *FulfillmentFacade) ValidateOrder(ctx context.Context, order *model.Order) (bool, error) {
	if order.Type != model.OrderTypeTransfer {
		return false, nil
	}
	if !f.serves(order.Product.ID) {
		return false, domainErrors.ErrInvalidProduct
	}
	return f.validator.ValidateTransfer(ctx, order)
}

func (f *FulfillmentFacade) RegisterTransfer(ctx context.Context, in model.TransferRegistration) (*model.Transfer, error) {
	record, err := f.transfers.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	f.logger.Info("transfer registered",
		slog.Int64("transfer", record.ID),
		slog.String("membership", record.MembershipID),
		slog.String("product", record.ProductID),
	)
	return record, nil
}

func (f *FulfillmentFacade) Transfers(ctx context.Context, productID string, status model.TransferStatus) ([]model.Transfer, error) {
	return f.transfers.List(ctx, productID, status)
}

func (f *FulfillmentFacade) ProcessTransfers(ctx context.Context) (migration.Report, error) {
	return f.migration.ProcessTransfers(ctx)
}

func (f *FulfillmentFacade) CheckRunningTransfers(ctx context.Context) (migration.Report, error) {
	return f.migration.CheckRunningTransfers(ctx)
}

// SyncPrices syncs the given agreements, or every agreement of the served products
// when ids is empty.
func (f *FulfillmentFacade) SyncPrices(ctx context.Context, ids []string, opts pricesync.Options) (pricesync.Report, error) {
	if len(ids) == 0 {
		return f.prices.SyncAll(ctx, opts)
	}
	return f.prices.SyncByIDs(ctx, ids, opts)
}

func (f *FulfillmentFacade) serves(productID string) bool {
	for _, id := range f.products {
		if id == productID {
			return true
		}
	}
	return false
}

var _ TransferRegistry = (*usecase.TransferUseCase)(nil)
