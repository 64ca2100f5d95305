package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// OrderUpdateCall stores information about UpdateOrder invocations.
type OrderUpdateCall struct {
	OrderID string
	Update  marketplace.OrderUpdate
}

// CompleteCall stores a CompleteOrder invocation.
type CompleteCall struct {
	OrderID  string
	Template model.Template
}

// FailCall stores a FailOrder invocation.
type FailCall struct {
	OrderID string
	Reason  string
}

// QueryCall stores a QueryOrder invocation.
type QueryCall struct {
	OrderID    string
	Parameters model.Parameters
	Template   *model.Template
}

// SubscriptionCall stores a CreateSubscription invocation.
type SubscriptionCall struct {
	OrderID      string
	Subscription model.Subscription
}

// SubscriptionUpdateCall stores an order subscription parameter update.
type SubscriptionUpdateCall struct {
	OrderID        string
	SubscriptionID string
	Parameters     model.Parameters
}

// AgreementUpdateCall stores an agreement or agreement subscription update.
type AgreementUpdateCall struct {
	ID         string
	Lines      []marketplace.LinePrice
	Parameters model.Parameters
}

// MarketplaceStub is an in-memory marketplace platform client.
type MarketplaceStub struct {
	Orders        []model.Order
	Agreements    []model.Agreement
	Subscriptions map[string]model.Subscription
	Items         []model.Item
	OneTime       []model.Item
	Prices        []model.PriceListItem
	Buyer         model.Buyer

	ListProcessingOrdersFn func(context.Context, []string, int) ([]model.Order, error)
	GetOrderFn             func(context.Context, string) (*model.Order, error)
	UpdateOrderFn          func(context.Context, string, marketplace.OrderUpdate) (*model.Order, error)
	CompleteOrderFn        func(context.Context, string, model.Template) (*model.Order, error)
	FailOrderFn            func(context.Context, string, string) (*model.Order, error)
	ListAgreementsFn       func(context.Context, marketplace.AgreementFilter) ([]model.Agreement, error)
	ProductTemplateFn      func(context.Context, string, model.OrderStatus, string) (*model.Template, error)
	UpdateAgreementFn      func(context.Context, string, []marketplace.LinePrice, model.Parameters) error

	Updates             []OrderUpdateCall
	Completed           []CompleteCall
	Failed              []FailCall
	Queried             []QueryCall
	CreatedSubs         []SubscriptionCall
	SubUpdates          []SubscriptionUpdateCall
	AgreementUpdates    []AgreementUpdateCall
	AgreementSubUpdates []AgreementUpdateCall
	ListFilters         []marketplace.AgreementFilter

	mu sync.Mutex
}

func (s *MarketplaceStub) ListProcessingOrders(ctx context.Context, productIDs []string, limit int) ([]model.Order, error) {
	if s.ListProcessingOrdersFn != nil {
		return s.ListProcessingOrdersFn(ctx, productIDs, limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]model.Order, len(s.Orders))
	copy(orders, s.Orders)
	return orders, nil
}

func (s *MarketplaceStub) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if s.GetOrderFn != nil {
		return s.GetOrderFn(ctx, orderID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.Orders {
		if o.ID == orderID {
			order := o
			return &order, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *MarketplaceStub) UpdateOrder(ctx context.Context, orderID string, update marketplace.OrderUpdate) (*model.Order, error) {
	s.mu.Lock()
	s.Updates = append(s.Updates, OrderUpdateCall{OrderID: orderID, Update: update})
	s.mu.Unlock()
	if s.UpdateOrderFn != nil {
		return s.UpdateOrderFn(ctx, orderID, update)
	}
	return &model.Order{ID: orderID}, nil
}

func (s *MarketplaceStub) CompleteOrder(ctx context.Context, orderID string, template model.Template) (*model.Order, error) {
	s.mu.Lock()
	s.Completed = append(s.Completed, CompleteCall{OrderID: orderID, Template: template})
	s.mu.Unlock()
	if s.CompleteOrderFn != nil {
		return s.CompleteOrderFn(ctx, orderID, template)
	}
	return &model.Order{ID: orderID, Status: model.OrderStatusCompleted}, nil
}

func (s *MarketplaceStub) FailOrder(ctx context.Context, orderID, reason string) (*model.Order, error) {
	s.mu.Lock()
	s.Failed = append(s.Failed, FailCall{OrderID: orderID, Reason: reason})
	s.mu.Unlock()
	if s.FailOrderFn != nil {
		return s.FailOrderFn(ctx, orderID, reason)
	}
	return &model.Order{ID: orderID, Status: model.OrderStatusFailed}, nil
}

func (s *MarketplaceStub) QueryOrder(ctx context.Context, orderID string, params model.Parameters, template *model.Template) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queried = append(s.Queried, QueryCall{OrderID: orderID, Parameters: params.Clone(), Template: template})
	return &model.Order{ID: orderID, Status: model.OrderStatusQuerying}, nil
}

func (s *MarketplaceStub) CreateSubscription(ctx context.Context, orderID string, sub model.Subscription) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreatedSubs = append(s.CreatedSubs, SubscriptionCall{OrderID: orderID, Subscription: sub})
	created := sub
	created.ID = fmt.Sprintf("SUB-%04d", len(s.CreatedSubs))
	return &created, nil
}

func (s *MarketplaceStub) UpdateSubscription(ctx context.Context, orderID, subscriptionID string, params model.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SubUpdates = append(s.SubUpdates, SubscriptionUpdateCall{OrderID: orderID, SubscriptionID: subscriptionID, Parameters: params})
	return nil
}

func (s *MarketplaceStub) GetAgreement(ctx context.Context, agreementID string) (*model.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.Agreements {
		if a.ID == agreementID {
			agreement := a
			return &agreement, nil
		}
	}
	return &model.Agreement{ID: agreementID}, nil
}

func (s *MarketplaceStub) ListAgreements(ctx context.Context, filter marketplace.AgreementFilter) ([]model.Agreement, error) {
	s.mu.Lock()
	s.ListFilters = append(s.ListFilters, filter)
	s.mu.Unlock()
	if s.ListAgreementsFn != nil {
		return s.ListAgreementsFn(ctx, filter)
	}
	if len(filter.IDs) == 0 {
		return s.Agreements, nil
	}
	wanted := make(map[string]struct{}, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = struct{}{}
	}
	var out []model.Agreement
	for _, a := range s.Agreements {
		if _, ok := wanted[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MarketplaceStub) UpdateAgreement(ctx context.Context, agreementID string, lines []marketplace.LinePrice, params model.Parameters) error {
	s.mu.Lock()
	s.AgreementUpdates = append(s.AgreementUpdates, AgreementUpdateCall{ID: agreementID, Lines: lines, Parameters: params})
	s.mu.Unlock()
	if s.UpdateAgreementFn != nil {
		return s.UpdateAgreementFn(ctx, agreementID, lines, params)
	}
	return nil
}

func (s *MarketplaceStub) GetAgreementSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.Subscriptions[subscriptionID]; ok {
		return &sub, nil
	}
	return nil, domainErrors.ErrNotFound
}

func (s *MarketplaceStub) UpdateAgreementSubscription(ctx context.Context, subscriptionID string, lines []marketplace.LinePrice, params model.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AgreementSubUpdates = append(s.AgreementSubUpdates, AgreementUpdateCall{ID: subscriptionID, Lines: lines, Parameters: params})
	return nil
}

func (s *MarketplaceStub) ItemsBySKUs(ctx context.Context, productID string, skus []string) ([]model.Item, error) {
	wanted := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		wanted[sku] = struct{}{}
	}
	var out []model.Item
	for _, item := range s.Items {
		if _, ok := wanted[item.ExternalIDs.Vendor]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *MarketplaceStub) OneTimeItems(ctx context.Context, productID string, itemIDs []string) ([]model.Item, error) {
	return s.OneTime, nil
}

func (s *MarketplaceStub) PriceListItems(ctx context.Context, priceListID string, itemIDs []string) ([]model.PriceListItem, error) {
	return s.Prices, nil
}

func (s *MarketplaceStub) ProductTemplate(ctx context.Context, productID string, status model.OrderStatus, name string) (*model.Template, error) {
	if s.ProductTemplateFn != nil {
		return s.ProductTemplateFn(ctx, productID, status, name)
	}
	return &model.Template{ID: "TPL-" + string(status) + "-" + name, Name: name}, nil
}

func (s *MarketplaceStub) GetBuyer(ctx context.Context, buyerID string) (*model.Buyer, error) {
	buyer := s.Buyer
	buyer.ID = buyerID
	return &buyer, nil
}

// FailReasons returns the reasons of all FailOrder calls.
func (s *MarketplaceStub) FailReasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Failed))
	for _, f := range s.Failed {
		out = append(out, f.Reason)
	}
	return out
}

// CompletedCount returns the number of completed orders.
func (s *MarketplaceStub) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Completed)
}

// LastParameters returns the parameters of the latest order update that carried them.
func (s *MarketplaceStub) LastParameters() *model.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Updates) - 1; i >= 0; i-- {
		if s.Updates[i].Update.Parameters != nil {
			return s.Updates[i].Update.Parameters
		}
	}
	return nil
}
