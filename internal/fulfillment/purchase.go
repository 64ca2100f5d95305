package fulfillment

import (
	"context"
	"log/slog"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// PurchaseEngine creates the customer account and the first backend order of an agreement.
type PurchaseEngine struct {
	flow
}

// NewPurchaseEngine constructs the purchase order flow.
func NewPurchaseEngine(mpt marketplace.Client, backend vipm.Client, settings Settings, logger *slog.Logger) *PurchaseEngine {
	return &PurchaseEngine{flow: newFlow(mpt, backend, settings, logger)}
}

// Fulfill runs one pass of the purchase flow.
func (e *PurchaseEngine) Fulfill(ctx context.Context, order *model.Order) (Outcome, error) {
	if err := e.setProcessingTemplate(ctx, order, e.settings.Templates.Purchase); err != nil {
		return Outcome{}, err
	}

	customerID := order.CustomerID()
	if order.Stage() == model.StageNoCustomer {
		id, out, err := e.createCustomer(ctx, order)
		if out != nil || err != nil {
			return derefOutcome(out), err
		}
		customerID = id
	}

	if order.Stage() != model.StageSubmitted {
		if out, err := e.submitOrder(ctx, order, customerID, order.Lines); out != nil || err != nil {
			return derefOutcome(out), err
		}
	}

	backendOrder, out, err := e.pollOrder(ctx, order, customerID)
	if out != nil || err != nil {
		return derefOutcome(out), err
	}

	oneTime, err := e.oneTimeSKUs(ctx, order)
	if err != nil {
		return Outcome{}, err
	}
	var commitmentDate string
	for _, item := range backendOrder.LineItems {
		if _, skip := oneTime[item.PartialSKU()]; skip {
			continue
		}
		sub, err := e.addSubscription(ctx, order, customerID, item)
		if err != nil {
			return e.backendFailure(ctx, order, err)
		}
		if sub != nil && commitmentDate == "" {
			commitmentDate = sub.CommitmentDate
		}
	}
	if commitmentDate != "" {
		if err := e.saveNextSync(ctx, order, commitmentDate); err != nil {
			return Outcome{}, err
		}
	}

	if err := e.updatePrices(ctx, order); err != nil {
		return Outcome{}, err
	}
	return e.complete(ctx, order, e.settings.Templates.Purchase)
}
