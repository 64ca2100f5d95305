package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	testhelpers "github.com/polkiloo/vipm-fulfillment/internal/test"
)

var changeNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestChangeEngine(mpt *testhelpers.MarketplaceStub, backend *testhelpers.BackendStub) *ChangeEngine {
	engine := NewChangeEngine(mpt, backend, testSettings(), discardLogger())
	engine.now = fixedClock(changeNow)
	return engine
}

// changeOrder builds a change of the Acrobat line from old to quantity on a subscription started at start.
func changeOrder(quantity, old int, start string) *model.Order {
	acrobat := item("ITM-1", skuAcrobat)
	order := newOrder(model.OrderTypeChange, orderLine("L1", acrobat, quantity, old))
	order.Parameters.SetFulfillment(model.ParamCustomerID, "CUS-1")
	order.Subscriptions = []model.Subscription{{
		ID:          "SUB-1",
		Lines:       []model.Line{{ID: "L1", Item: acrobat}},
		ExternalIDs: model.ExternalIDs{Vendor: "VS-1"},
		StartDate:   start,
	}}
	return order
}

func processedOrder(items ...model.BackendItem) func(context.Context, string, string, string) (*model.BackendOrder, error) {
	return func(_ context.Context, _, _, orderID string) (*model.BackendOrder, error) {
		return &model.BackendOrder{OrderID: orderID, Status: model.BackendStatusProcessed, LineItems: items}, nil
	}
}

func TestChangeUpsizeInWindowUpdatesSKUAndCompletes(t *testing.T) {
	order := changeOrder(10, 5, "2025-03-10")
	mpt := &testhelpers.MarketplaceStub{}
	backend := &testhelpers.BackendStub{
		GetOrderFn: processedOrder(model.BackendItem{OfferID: fullSKU(skuAcrobat), SubscriptionID: "VS-1"}),
	}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", out)
	}
	if backend.CallCount("CreateReturnOrder") != 0 {
		t.Fatalf("upsize must not return licenses")
	}
	if len(backend.PreviewOrders) != 1 || backend.PreviewOrders[0].Lines[0].Quantity != 10 {
		t.Fatalf("unexpected preview orders %+v", backend.PreviewOrders)
	}
	if len(mpt.SubUpdates) != 1 {
		t.Fatalf("expected one subscription SKU update, got %d", len(mpt.SubUpdates))
	}
	update := mpt.SubUpdates[0]
	if update.SubscriptionID != "SUB-1" || update.Parameters.FulfillmentValue(model.ParamAdobeSKU) != fullSKU(skuAcrobat) {
		t.Fatalf("unexpected subscription update %+v", update)
	}
	if len(mpt.CreatedSubs) != 0 {
		t.Fatalf("existing subscription must not be recreated")
	}
	if mpt.Completed[0].Template.Name != "Change" {
		t.Fatalf("unexpected completed template %+v", mpt.Completed[0].Template)
	}
}

func TestChangeDownsizeInWindowReturnsOriginalOrder(t *testing.T) {
	order := changeOrder(3, 5, "2025-03-10")
	mpt := &testhelpers.MarketplaceStub{}
	original := model.BackendOrder{
		OrderID:   "P-ORIG",
		OrderType: model.BackendOrderTypeNew,
		Status:    model.BackendStatusProcessed,
		LineItems: []model.BackendItem{{ExtLineItemNumber: 1, OfferID: fullSKU(skuAcrobat), Quantity: 5}},
	}
	backend := &testhelpers.BackendStub{
		SearchFn: func(context.Context, string, string, string, string) ([]model.ReturnableOrder, error) {
			return []model.ReturnableOrder{{Order: original, Item: original.LineItems[0]}}, nil
		},
		GetOrderFn: processedOrder(model.BackendItem{OfferID: fullSKU(skuAcrobat), SubscriptionID: "VS-1"}),
	}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", out)
	}
	if len(backend.ReturnOrders) != 1 {
		t.Fatalf("expected one return order, got %d", len(backend.ReturnOrders))
	}
	if ret := backend.ReturnOrders[0]; ret.Order.OrderID != "P-ORIG" || ret.Item.Quantity != 5 {
		t.Fatalf("unexpected return %+v", ret)
	}
	if len(backend.PreviewOrders) != 1 || backend.PreviewOrders[0].Lines[0].Quantity != 3 {
		t.Fatalf("expected the new quantity to be ordered, got %+v", backend.PreviewOrders)
	}
}

func TestChangeWaitsForPendingReturn(t *testing.T) {
	order := changeOrder(3, 5, "2025-03-10")
	mpt := &testhelpers.MarketplaceStub{}
	backend := &testhelpers.BackendStub{
		SearchFn: func(context.Context, string, string, string, string) ([]model.ReturnableOrder, error) {
			return []model.ReturnableOrder{{
				Order:       model.BackendOrder{OrderID: "P-ORIG"},
				ReturnOrder: &model.BackendOrder{OrderID: "R-1", Status: model.BackendStatusPending},
			}}, nil
		},
	}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeRetrying {
		t.Fatalf("expected retrying outcome, got %+v", out)
	}
	if backend.CallCount("CreateReturnOrder") != 0 || backend.CallCount("CreatePreviewOrder") != 0 {
		t.Fatalf("nothing may be ordered while a return is pending, calls: %v", backend.Calls)
	}
	if order.RetryCount() != 1 {
		t.Fatalf("expected retry count 1, got %d", order.RetryCount())
	}
}

func TestChangeDownsizeOutOfWindowLowersRenewal(t *testing.T) {
	order := changeOrder(3, 5, "2025-02-01")
	mpt := &testhelpers.MarketplaceStub{}
	backend := &testhelpers.BackendStub{
		CreatePreviewRenewalFn: func(context.Context, string, string) (*model.BackendOrder, error) {
			return &model.BackendOrder{
				OrderType: model.BackendOrderTypePreviewRenewal,
				LineItems: []model.BackendItem{{SubscriptionID: "VS-1", OfferID: skuAcrobat + "03A12"}},
			}, nil
		},
	}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", out)
	}
	if backend.CallCount("CreatePreviewOrder") != 0 || backend.CallCount("CreateReturnOrder") != 0 {
		t.Fatalf("out of window downsize must not order or return, calls: %v", backend.Calls)
	}
	if len(backend.SubscriptionUpdates) != 1 {
		t.Fatalf("expected one renewal update, got %d", len(backend.SubscriptionUpdates))
	}
	if q := backend.SubscriptionUpdates[0].Update.RenewalQuantity; q == nil || *q != 3 {
		t.Fatalf("unexpected renewal quantity %v", q)
	}
	if len(mpt.SubUpdates) != 1 || mpt.SubUpdates[0].Parameters.FulfillmentValue(model.ParamAdobeSKU) != skuAcrobat+"03A12" {
		t.Fatalf("expected renewal SKU to be recorded, got %+v", mpt.SubUpdates)
	}
}

func TestChangeUpsizeOutOfWindowOrdersOnlyUncoveredDelta(t *testing.T) {
	order := changeOrder(8, 3, "2025-02-01")
	mpt := &testhelpers.MarketplaceStub{}
	backend := &testhelpers.BackendStub{
		GetSubscriptionFn: func(_ context.Context, _, _, id string) (*model.BackendSubscription, error) {
			return &model.BackendSubscription{
				SubscriptionID:  id,
				CurrentQuantity: 5,
				AutoRenewal:     model.AutoRenewal{Enabled: true, RenewalQuantity: 3},
			}, nil
		},
		GetOrderFn: processedOrder(model.BackendItem{OfferID: fullSKU(skuAcrobat), SubscriptionID: "VS-1"}),
	}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", out)
	}
	if len(backend.SubscriptionUpdates) != 1 || *backend.SubscriptionUpdates[0].Update.RenewalQuantity != 5 {
		t.Fatalf("expected renewal to be realigned to the current quantity, got %+v", backend.SubscriptionUpdates)
	}
	if len(backend.PreviewOrders) != 1 {
		t.Fatalf("expected one preview order, got %d", len(backend.PreviewOrders))
	}
	if l := backend.PreviewOrders[0].Lines[0]; l.Quantity != 8 || l.OldQuantity != 5 {
		t.Fatalf("unexpected ordered line %+v", l)
	}
}

func TestChangeUpsizeCoveredByCurrentQuantityOnlyRestoresRenewal(t *testing.T) {
	order := changeOrder(4, 3, "2025-02-01")
	mpt := &testhelpers.MarketplaceStub{}
	backend := &testhelpers.BackendStub{
		GetSubscriptionFn: func(_ context.Context, _, _, id string) (*model.BackendSubscription, error) {
			return &model.BackendSubscription{
				SubscriptionID:  id,
				CurrentQuantity: 5,
				AutoRenewal:     model.AutoRenewal{Enabled: true, RenewalQuantity: 3},
			}, nil
		},
	}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", out)
	}
	if backend.CallCount("CreatePreviewOrder") != 0 {
		t.Fatalf("covered upsize must not be ordered")
	}
	if len(backend.SubscriptionUpdates) != 1 || *backend.SubscriptionUpdates[0].Update.RenewalQuantity != 4 {
		t.Fatalf("unexpected renewal updates %+v", backend.SubscriptionUpdates)
	}
}

func TestChangeRejectsDuplicateItems(t *testing.T) {
	acrobat := item("ITM-1", skuAcrobat)
	order := newOrder(model.OrderTypeChange, orderLine("L1", acrobat, 2, 1), orderLine("L2", acrobat, 3, 0))
	mpt := &testhelpers.MarketplaceStub{}
	backend := &testhelpers.BackendStub{}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeFailed || out.Reason != duplicateItemsReason("ITM-1") {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(backend.Calls) != 0 {
		t.Fatalf("backend must not be called, got %v", backend.Calls)
	}
}

func TestChangeRejectsNewLineForExistingItem(t *testing.T) {
	photoshop := item("ITM-2", skuPhotoshop)
	order := newOrder(model.OrderTypeChange, orderLine("L2", photoshop, 3, 0))
	mpt := &testhelpers.MarketplaceStub{
		Agreements: []model.Agreement{{ID: "AGR-1", Lines: []model.Line{{ID: "AL-1", Item: photoshop, Quantity: 1}}}},
	}

	out, err := newTestChangeEngine(mpt, &testhelpers.BackendStub{}).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeFailed || out.Reason != existingItemsReason("ITM-2") {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestChangeUsesAgreementCustomer(t *testing.T) {
	stock := item("ITM-3", skuStock)
	order := newOrder(model.OrderTypeChange, orderLine("L3", stock, 2, 0))
	agreement := model.Agreement{ID: "AGR-1"}
	agreement.Parameters.SetFulfillment(model.ParamCustomerID, "CUS-AGR")
	mpt := &testhelpers.MarketplaceStub{Agreements: []model.Agreement{agreement}}
	backend := &testhelpers.BackendStub{
		GetOrderFn: processedOrder(model.BackendItem{OfferID: fullSKU(skuStock), SubscriptionID: "VS-3"}),
	}

	out, err := newTestChangeEngine(mpt, backend).Fulfill(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %+v", out)
	}
	if backend.PreviewOrders[0].CustomerID != "CUS-AGR" {
		t.Fatalf("unexpected customer %s", backend.PreviewOrders[0].CustomerID)
	}
	if len(mpt.CreatedSubs) != 1 || mpt.CreatedSubs[0].Subscription.ExternalIDs.Vendor != "VS-3" {
		t.Fatalf("expected subscription for the new item, got %+v", mpt.CreatedSubs)
	}
}

func TestCancellationWindowBoundary(t *testing.T) {
	engine := newTestChangeEngine(&testhelpers.MarketplaceStub{}, &testhelpers.BackendStub{})
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		sub  *model.Subscription
		want bool
	}{
		{name: "no subscription", sub: nil, want: false},
		{name: "unparsable start", sub: &model.Subscription{StartDate: "soon"}, want: false},
		{name: "inside window", sub: &model.Subscription{StartDate: "2025-03-02"}, want: false},
		{name: "exactly at cutoff", sub: &model.Subscription{StartDate: "2025-03-01"}, want: true},
		{name: "past cutoff", sub: &model.Subscription{StartDate: "2025-02-20"}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.outOfWindow(tc.sub, now); got != tc.want {
				t.Fatalf("outOfWindow = %v, want %v", got, tc.want)
			}
		})
	}
}
