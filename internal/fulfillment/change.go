package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// ChangeEngine applies quantity changes and new items to an existing agreement.
type ChangeEngine struct {
	flow
}

// NewChangeEngine constructs the change order flow.
func NewChangeEngine(mpt marketplace.Client, backend vipm.Client, settings Settings, logger *slog.Logger) *ChangeEngine {
	return &ChangeEngine{flow: newFlow(mpt, backend, settings, logger)}
}

// Fulfill runs one pass of the change flow.
func (e *ChangeEngine) Fulfill(ctx context.Context, order *model.Order) (Outcome, error) {
	if err := e.setProcessingTemplate(ctx, order, e.settings.Templates.Change); err != nil {
		return Outcome{}, err
	}
	if itemID := duplicateItem(order.Lines); itemID != "" {
		return e.fail(ctx, order, duplicateItemsReason(itemID))
	}

	agreement, err := e.mpt.GetAgreement(ctx, order.Agreement.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get agreement %s: %w", order.Agreement.ID, err)
	}
	if itemID := existingItem(order.Lines, agreement); itemID != "" {
		return e.fail(ctx, order, existingItemsReason(itemID))
	}

	customerID := order.CustomerID()
	if customerID == "" {
		customerID = agreement.CustomerID()
	}

	if order.Stage() != model.StageSubmitted {
		toOrder, out, err := e.prepareLines(ctx, order, customerID)
		if out != nil || err != nil {
			return derefOutcome(out), err
		}
		if err := e.updatePrices(ctx, order); err != nil {
			return Outcome{}, err
		}
		if len(toOrder) == 0 {
			return e.complete(ctx, order, e.settings.Templates.Change)
		}
		if out, err := e.submitOrder(ctx, order, customerID, toOrder); out != nil || err != nil {
			return derefOutcome(out), err
		}
	}

	backendOrder, out, err := e.pollOrder(ctx, order, customerID)
	if out != nil || err != nil {
		return derefOutcome(out), err
	}
	if err := e.syncSubscriptions(ctx, order, customerID, backendOrder); err != nil {
		return e.backendFailure(ctx, order, err)
	}
	if err := e.updatePrices(ctx, order); err != nil {
		return Outcome{}, err
	}
	return e.complete(ctx, order, e.settings.Templates.Change)
}

func duplicateItem(lines []model.Line) string {
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.Item.ID]; ok {
			return line.Item.ID
		}
		seen[line.Item.ID] = struct{}{}
	}
	return ""
}

func existingItem(lines []model.Line, agreement *model.Agreement) string {
	for _, line := range lines {
		if line.Change() == model.LineNew && agreement.HasItem(line.Item.ID) {
			return line.Item.ID
		}
	}
	return ""
}

// outOfWindow reports whether the cancellation window of the subscription has expired.
// A subscription exactly at the cutoff counts as expired.
func (e *ChangeEngine) outOfWindow(sub *model.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	start, err := sub.Started()
	if err != nil {
		return false
	}
	return now.Sub(start) >= e.settings.CancellationWindow()
}

// prepareLines performs the returns and renewal updates the change needs and returns the lines
// that still have to be ordered.
func (e *ChangeEngine) prepareLines(ctx context.Context, order *model.Order, customerID string) ([]model.Line, *Outcome, error) {
	now := e.now()

	var toOrder, returns, downsizesOut, upsizesOut []model.Line
	for _, line := range order.Lines {
		sub := order.SubscriptionByLine(line.ID, line.Item.ID)
		switch line.Change() {
		case model.LineNew:
			toOrder = append(toOrder, line)
		case model.LineUpsize:
			if e.outOfWindow(sub, now) {
				upsizesOut = append(upsizesOut, line)
				continue
			}
			toOrder = append(toOrder, line)
		case model.LineDownsize:
			if e.outOfWindow(sub, now) {
				downsizesOut = append(downsizesOut, line)
				continue
			}
			returns = append(returns, line)
			toOrder = append(toOrder, line)
		}
	}

	if out, err := e.returnLines(ctx, order, customerID, returns); out != nil || err != nil {
		return nil, out, err
	}

	for _, line := range downsizesOut {
		sub := order.SubscriptionByLine(line.ID, line.Item.ID)
		if err := e.downsizeOutOfWindow(ctx, order, customerID, line, sub); err != nil {
			out, ferr := e.backendFailure(ctx, order, err)
			return nil, &out, ferr
		}
	}

	for _, line := range upsizesOut {
		sub := order.SubscriptionByLine(line.ID, line.Item.ID)
		adjusted, needsOrder, err := e.realignUpsize(ctx, order, customerID, line, sub)
		if err != nil {
			out, ferr := e.backendFailure(ctx, order, err)
			return nil, &out, ferr
		}
		if needsOrder {
			toOrder = append(toOrder, adjusted)
		}
	}
	return toOrder, nil, nil
}

// returnLines returns the original purchase of every downsized line. An existing return that is
// not processed yet stops the pass.
func (e *ChangeEngine) returnLines(ctx context.Context, order *model.Order, customerID string, lines []model.Line) (*Outcome, error) {
	log := e.orderLogger(order)
	waiting := false
	for _, line := range lines {
		returnable, err := e.vipm.SearchNewAndReturnedOrders(ctx, order.Authorization.ID, customerID, line.SKU(), line.ID)
		if err != nil {
			out, ferr := e.backendFailure(ctx, order, err)
			return &out, ferr
		}
		for _, r := range returnable {
			if r.ReturnOrder != nil {
				if r.ReturnOrder.Status == model.BackendStatusProcessed {
					continue
				}
				log.Info("return order still pending", slog.String("return_order", r.ReturnOrder.OrderID))
				out, err := e.retry(ctx, order, r.ReturnOrder.OrderID)
				return &out, err
			}
			original := r.Order
			created, err := e.vipm.CreateReturnOrder(ctx, order.Authorization.ID, customerID, &original, r.Item)
			if err != nil {
				out, ferr := e.backendFailure(ctx, order, err)
				return &out, ferr
			}
			log.Info("return order created",
				slog.String("return_order", created.OrderID),
				slog.String("reference_order", original.OrderID),
			)
			if created.Status != model.BackendStatusProcessed {
				waiting = true
			}
		}
	}
	if waiting {
		out, err := e.retry(ctx, order, order.VendorOrderID())
		return &out, err
	}
	return nil, nil
}

// downsizeOutOfWindow lowers the renewal quantity instead of returning licenses and records the
// full SKU the subscription renews with.
func (e *ChangeEngine) downsizeOutOfWindow(ctx context.Context, order *model.Order, customerID string, line model.Line, sub *model.Subscription) error {
	vendorSubID := sub.ExternalIDs.Vendor
	quantity := line.Quantity
	update := model.SubscriptionUpdate{RenewalQuantity: &quantity}
	if err := e.vipm.UpdateSubscription(ctx, order.Authorization.ID, customerID, vendorSubID, update); err != nil {
		return err
	}
	e.orderLogger(order).Info("renewal quantity lowered",
		slog.String("subscription", vendorSubID),
		slog.Int("quantity", quantity),
	)

	renewal, err := e.vipm.CreatePreviewRenewal(ctx, order.Authorization.ID, customerID)
	if err != nil {
		return err
	}
	for _, item := range renewal.LineItems {
		if item.SubscriptionID == vendorSubID {
			return e.updateAdobeSKU(ctx, order, sub, item.OfferID)
		}
	}
	return nil
}

// realignUpsize handles an upsize of a subscription whose window expired. A previous
// out-of-window downsize left the current quantity above the renewal one, so the line is
// measured from the current quantity and only the uncovered delta is ordered.
func (e *ChangeEngine) realignUpsize(ctx context.Context, order *model.Order, customerID string, line model.Line, sub *model.Subscription) (model.Line, bool, error) {
	vendorSubID := sub.ExternalIDs.Vendor
	backendSub, err := e.vipm.GetSubscription(ctx, order.Authorization.ID, customerID, vendorSubID)
	if err != nil {
		return line, false, err
	}
	current := backendSub.CurrentQuantity
	renewal := backendSub.AutoRenewal.RenewalQuantity

	if line.Quantity <= current {
		if renewal != line.Quantity {
			quantity := line.Quantity
			if err := e.vipm.UpdateSubscription(ctx, order.Authorization.ID, customerID, vendorSubID, model.SubscriptionUpdate{RenewalQuantity: &quantity}); err != nil {
				return line, false, err
			}
		}
		return line, false, nil
	}

	if renewal != current {
		if err := e.vipm.UpdateSubscription(ctx, order.Authorization.ID, customerID, vendorSubID, model.SubscriptionUpdate{RenewalQuantity: &current}); err != nil {
			return line, false, err
		}
	}
	line.OldQuantity = current
	return line, true, nil
}

// syncSubscriptions creates subscriptions for new items and records the ordered SKU on the
// existing ones.
func (e *ChangeEngine) syncSubscriptions(ctx context.Context, order *model.Order, customerID string, backendOrder *model.BackendOrder) error {
	oneTime, err := e.oneTimeSKUs(ctx, order)
	if err != nil {
		return err
	}
	for _, item := range backendOrder.LineItems {
		if _, skip := oneTime[item.PartialSKU()]; skip {
			continue
		}
		line := order.LineBySKU(item.OfferID)
		if line == nil {
			continue
		}
		if sub := order.SubscriptionByLine(line.ID, line.Item.ID); sub != nil {
			if err := e.updateAdobeSKU(ctx, order, sub, item.OfferID); err != nil {
				return err
			}
			continue
		}
		if _, err := e.addSubscription(ctx, order, customerID, item); err != nil {
			return err
		}
	}
	return nil
}
