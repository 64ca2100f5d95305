package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// flow holds the collaborators shared by the purchase, change and transfer engines.
type flow struct {
	mpt      marketplace.Client
	vipm     vipm.Client
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

func newFlow(mpt marketplace.Client, backend vipm.Client, settings Settings, logger *slog.Logger) flow {
	return flow{
		mpt:      mpt,
		vipm:     backend,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

func productID(order *model.Order) string {
	if order.Product.ID != "" {
		return order.Product.ID
	}
	return order.Agreement.Product.ID
}

func sellerID(order *model.Order) string {
	if order.Seller.ID != "" {
		return order.Seller.ID
	}
	return order.Agreement.Seller.ID
}

func (f *flow) orderLogger(order *model.Order) *slog.Logger {
	return f.logger.With(slog.String("order", order.ID), slog.String("type", string(order.Type)))
}

// setProcessingTemplate switches the order to the processing template of the flow unless already set.
func (f *flow) setProcessingTemplate(ctx context.Context, order *model.Order, name string) error {
	if order.Template != nil && order.Template.Name == name {
		return nil
	}
	tpl, err := f.mpt.ProductTemplate(ctx, productID(order), model.OrderStatusProcessing, name)
	if err != nil {
		return fmt.Errorf("processing template %s: %w", name, err)
	}
	if order.Template != nil && order.Template.ID == tpl.ID {
		return nil
	}
	if _, err := f.mpt.UpdateOrder(ctx, order.ID, marketplace.OrderUpdate{Template: tpl}); err != nil {
		return fmt.Errorf("set processing template: %w", err)
	}
	order.Template = tpl
	return nil
}

func (f *flow) fail(ctx context.Context, order *model.Order, reason string) (Outcome, error) {
	if _, err := f.mpt.FailOrder(ctx, order.ID, reason); err != nil {
		return Outcome{}, fmt.Errorf("fail order %s: %w", order.ID, err)
	}
	f.orderLogger(order).Warn("order failed", slog.String("reason", reason))
	return failed(reason), nil
}

func (f *flow) query(ctx context.Context, order *model.Order, reason string) (Outcome, error) {
	tpl, err := f.mpt.ProductTemplate(ctx, productID(order), model.OrderStatusQuerying, f.settings.Templates.Querying)
	if err != nil {
		return Outcome{}, fmt.Errorf("querying template: %w", err)
	}
	if _, err := f.mpt.QueryOrder(ctx, order.ID, order.Parameters, tpl); err != nil {
		return Outcome{}, fmt.Errorf("query order %s: %w", order.ID, err)
	}
	f.orderLogger(order).Info("order switched to querying", slog.String("reason", reason))
	return querying(reason), nil
}

// complete resets the retry counter and completes the order with the named template.
func (f *flow) complete(ctx context.Context, order *model.Order, templateName string) (Outcome, error) {
	if order.RetryCount() != 0 {
		order.SetRetryCount(0)
		if err := f.saveParameters(ctx, order); err != nil {
			return Outcome{}, err
		}
	}
	tpl, err := f.mpt.ProductTemplate(ctx, productID(order), model.OrderStatusCompleted, templateName)
	if err != nil {
		return Outcome{}, fmt.Errorf("completed template %s: %w", templateName, err)
	}
	if _, err := f.mpt.CompleteOrder(ctx, order.ID, *tpl); err != nil {
		return Outcome{}, fmt.Errorf("complete order %s: %w", order.ID, err)
	}
	f.orderLogger(order).Info("order completed", slog.String("template", tpl.Name))
	return completed(), nil
}

// retry spends one processing attempt, failing the order once the attempts are exhausted.
func (f *flow) retry(ctx context.Context, order *model.Order, vendorOrderID string) (Outcome, error) {
	counter := ProcessingAttempts(f.settings.MaxProcessingAttempts)
	next, exhausted := counter.Advance(order.RetryCount())
	if exhausted {
		return f.fail(ctx, order, counter.Reason())
	}
	order.SetRetryCount(next)
	if err := f.saveParameters(ctx, order); err != nil {
		return Outcome{}, err
	}
	reason := fmt.Sprintf("backend order %s not ready yet, attempt %d", vendorOrderID, next)
	f.orderLogger(order).Info("order will be retried", slog.Int("retry_count", next))
	return retrying(reason), nil
}

// backendFailure turns an error raised mid-flow into a terminal action.
// Errors not coming from the backend are marketplace failures and are returned.
func (f *flow) backendFailure(ctx context.Context, order *model.Order, err error) (Outcome, error) {
	be, ok := domainErrors.AsBackend(err)
	if !ok {
		return Outcome{}, err
	}
	if be.Kind == domainErrors.KindRecoverable {
		return f.retry(ctx, order, order.VendorOrderID())
	}
	return f.fail(ctx, order, be.Error())
}

func (f *flow) saveParameters(ctx context.Context, order *model.Order) error {
	params := order.Parameters.Clone()
	if _, err := f.mpt.UpdateOrder(ctx, order.ID, marketplace.OrderUpdate{Parameters: &params}); err != nil {
		return fmt.Errorf("update order %s parameters: %w", order.ID, err)
	}
	return nil
}

// saveVendorOrderID records the backend order id; its presence stops any later resubmission.
func (f *flow) saveVendorOrderID(ctx context.Context, order *model.Order, vendorOrderID string) error {
	ids := model.ExternalIDs{Vendor: vendorOrderID}
	if _, err := f.mpt.UpdateOrder(ctx, order.ID, marketplace.OrderUpdate{ExternalIDs: &ids}); err != nil {
		return fmt.Errorf("update order %s external ids: %w", order.ID, err)
	}
	order.ExternalIDs = ids
	return nil
}

// saveCustomerData records the backend order id, the customer id and the customer profile.
func (f *flow) saveCustomerData(ctx context.Context, order *model.Order, vendorOrderID string, customer *model.Customer) error {
	order.ExternalIDs.Vendor = vendorOrderID
	order.Parameters.SetFulfillment(model.ParamCustomerID, customer.CustomerID)

	profile := customer.CompanyProfile
	if err := order.Parameters.SetOrdering(model.ParamCompanyName, profile.CompanyName); err != nil {
		return err
	}
	if err := order.Parameters.SetOrdering(model.ParamPreferredLanguage, profile.PreferredLanguage); err != nil {
		return err
	}
	if err := order.Parameters.SetOrdering(model.ParamAddress, profile.Address); err != nil {
		return err
	}
	if len(profile.Contacts) > 0 {
		if err := order.Parameters.SetOrdering(model.ParamContact, profile.Contacts[0]); err != nil {
			return err
		}
	}

	params := order.Parameters.Clone()
	ids := order.ExternalIDs
	if _, err := f.mpt.UpdateOrder(ctx, order.ID, marketplace.OrderUpdate{Parameters: &params, ExternalIDs: &ids}); err != nil {
		return fmt.Errorf("update order %s customer data: %w", order.ID, err)
	}
	return nil
}

// saveNextSync stores the date from which the agreement prices are synchronized again.
func (f *flow) saveNextSync(ctx context.Context, order *model.Order, commitmentDate string) error {
	date, err := model.ParseDate(commitmentDate)
	if err != nil {
		return fmt.Errorf("commitment date: %w", err)
	}
	order.Parameters.SetFulfillment(model.ParamNextSync, model.FormatDate(date))
	return f.saveParameters(ctx, order)
}

// oneTimeSKUs returns the partial SKUs of the order items billed once.
func (f *flow) oneTimeSKUs(ctx context.Context, order *model.Order) (map[string]struct{}, error) {
	skus := make(map[string]struct{})
	if len(order.Lines) == 0 {
		return skus, nil
	}
	ids := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		ids = append(ids, line.Item.ID)
	}
	items, err := f.mpt.OneTimeItems(ctx, productID(order), ids)
	if err != nil {
		return nil, fmt.Errorf("one-time items: %w", err)
	}
	for _, item := range items {
		skus[model.PartialSKU(item.ExternalIDs.Vendor)] = struct{}{}
	}
	return skus, nil
}

// addSubscription materializes the backend subscription behind item on the order.
// It returns nil when no order line matches the item.
func (f *flow) addSubscription(ctx context.Context, order *model.Order, customerID string, item model.BackendItem) (*model.Subscription, error) {
	if existing := order.SubscriptionByVendorID(item.SubscriptionID); existing != nil {
		return existing, nil
	}
	line := order.LineBySKU(item.OfferID)
	if line == nil {
		f.orderLogger(order).Warn("no order line for backend item", slog.String("sku", item.OfferID))
		return nil, nil
	}
	backendSub, err := f.vipm.GetSubscription(ctx, order.Authorization.ID, customerID, item.SubscriptionID)
	if err != nil {
		return nil, err
	}

	sub := model.Subscription{
		Name:           "Subscription for " + line.Item.Name,
		Lines:          []model.Line{{ID: line.ID}},
		ExternalIDs:    model.ExternalIDs{Vendor: backendSub.SubscriptionID},
		StartDate:      backendSub.CreationDate,
		CommitmentDate: backendSub.RenewalDate,
		AutoRenew:      backendSub.AutoRenewal.Enabled,
	}
	sub.Parameters.SetFulfillment(model.ParamAdobeSKU, backendSub.OfferID)

	created, err := f.mpt.CreateSubscription(ctx, order.ID, sub)
	if err != nil {
		return nil, fmt.Errorf("create subscription for %s: %w", item.SubscriptionID, err)
	}
	if created != nil && created.ID != "" {
		if created.CommitmentDate == "" {
			created.CommitmentDate = sub.CommitmentDate
		}
		sub = *created
	}
	order.Subscriptions = append(order.Subscriptions, sub)
	f.orderLogger(order).Info("subscription created", slog.String("subscription", item.SubscriptionID))
	return &sub, nil
}

// updateAdobeSKU corrects the full backend SKU stored on an existing order subscription.
func (f *flow) updateAdobeSKU(ctx context.Context, order *model.Order, sub *model.Subscription, sku string) error {
	var params model.Parameters
	params.SetFulfillment(model.ParamAdobeSKU, sku)
	if err := f.mpt.UpdateSubscription(ctx, order.ID, sub.ID, params); err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	sub.Parameters.SetFulfillment(model.ParamAdobeSKU, sku)
	return nil
}

// updatePrices sets each order line price from the agreement price list.
func (f *flow) updatePrices(ctx context.Context, order *model.Order) error {
	if len(order.Lines) == 0 || order.PriceListID() == "" {
		return nil
	}
	ids := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		ids = append(ids, line.Item.ID)
	}
	items, err := f.mpt.PriceListItems(ctx, order.PriceListID(), ids)
	if err != nil {
		return fmt.Errorf("price list items: %w", err)
	}
	prices := make(map[string]model.Price, len(items))
	for _, it := range items {
		prices[it.Item.ID] = model.Price{UnitPP: it.UnitPP}
	}

	var updates []marketplace.LinePrice
	for i := range order.Lines {
		price, ok := prices[order.Lines[i].Item.ID]
		if !ok {
			continue
		}
		order.Lines[i].Price = price
		updates = append(updates, marketplace.LinePrice{ID: order.Lines[i].ID, Price: price})
	}
	if len(updates) == 0 {
		return nil
	}
	if _, err := f.mpt.UpdateOrder(ctx, order.ID, marketplace.OrderUpdate{Lines: updates}); err != nil {
		return fmt.Errorf("update order %s prices: %w", order.ID, err)
	}
	return nil
}

// pollOrder checks a submitted backend order. It returns the order once processed; otherwise
// the returned outcome is the terminal action already taken.
func (f *flow) pollOrder(ctx context.Context, order *model.Order, customerID string) (*model.BackendOrder, *Outcome, error) {
	vendorID := order.VendorOrderID()
	backendOrder, err := f.vipm.GetOrder(ctx, order.Authorization.ID, customerID, vendorID)
	if err != nil {
		out, ferr := f.backendFailure(ctx, order, err)
		return nil, &out, ferr
	}
	switch status := backendOrder.Status; {
	case status == model.BackendStatusProcessed:
		return backendOrder, nil, nil
	case status == model.BackendStatusPending:
		out, err := f.retry(ctx, order, vendorID)
		return nil, &out, err
	default:
		reason, ok := model.UnrecoverableStatusDescription(status)
		if !ok {
			reason = unexpectedStatusReason(status)
		}
		out, err := f.fail(ctx, order, reason)
		return nil, &out, err
	}
}

// submitOrder places a preview and then a new backend order for the lines and records its id.
func (f *flow) submitOrder(ctx context.Context, order *model.Order, customerID string, lines []model.Line) (*Outcome, error) {
	preview, err := f.vipm.CreatePreviewOrder(ctx, order.Authorization.ID, customerID, order.ID, lines)
	if err != nil {
		out, ferr := f.backendFailure(ctx, order, err)
		return &out, ferr
	}
	created, err := f.vipm.CreateNewOrder(ctx, order.Authorization.ID, customerID, preview)
	if err != nil {
		out, ferr := f.backendFailure(ctx, order, err)
		return &out, ferr
	}
	if err := f.saveVendorOrderID(ctx, order, created.OrderID); err != nil {
		return nil, err
	}
	f.orderLogger(order).Info("backend order submitted", slog.String("vendor_order", created.OrderID))
	return nil, nil
}
