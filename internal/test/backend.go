package test

import (
	"context"
	"sync"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// PreviewOrderCall stores a CreatePreviewOrder invocation.
type PreviewOrderCall struct {
	CustomerID string
	OrderID    string
	Lines      []model.Line
}

// ReturnOrderCall stores a CreateReturnOrder invocation.
type ReturnOrderCall struct {
	CustomerID string
	Order      model.BackendOrder
	Item       model.BackendItem
}

// BackendSubscriptionCall stores an UpdateSubscription invocation on the backend.
type BackendSubscriptionCall struct {
	CustomerID     string
	SubscriptionID string
	Update         model.SubscriptionUpdate
}

// BackendStub is a configurable licensing backend client. Every call is recorded by name.
type BackendStub struct {
	PreviewTransferFn      func(context.Context, string, string) (*model.TransferPreview, error)
	CreateTransferFn       func(context.Context, string, string, string, string) (*model.BackendTransfer, error)
	GetTransferFn          func(context.Context, string, string, string) (*model.BackendTransfer, error)
	CreatePreviewOrderFn   func(context.Context, string, string, string, []model.Line) (*model.BackendOrder, error)
	CreateNewOrderFn       func(context.Context, string, string, *model.BackendOrder) (*model.BackendOrder, error)
	GetOrderFn             func(context.Context, string, string, string) (*model.BackendOrder, error)
	CreateReturnOrderFn    func(context.Context, string, string, *model.BackendOrder, model.BackendItem) (*model.BackendOrder, error)
	SearchFn               func(context.Context, string, string, string, string) ([]model.ReturnableOrder, error)
	CreatePreviewRenewalFn func(context.Context, string, string) (*model.BackendOrder, error)
	GetSubscriptionFn      func(context.Context, string, string, string) (*model.BackendSubscription, error)
	GetSubscriptionsFn     func(context.Context, string, string) ([]model.BackendSubscription, error)
	UpdateSubscriptionFn   func(context.Context, string, string, string, model.SubscriptionUpdate) error
	GetCustomerFn          func(context.Context, string, string) (*model.Customer, error)
	CreateCustomerFn       func(context.Context, string, string, string, model.CustomerData) (*model.Customer, error)

	Calls               []string
	PreviewOrders       []PreviewOrderCall
	ReturnOrders        []ReturnOrderCall
	SubscriptionUpdates []BackendSubscriptionCall
	CustomerRequests    []model.CustomerData

	mu sync.Mutex
}

func (s *BackendStub) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, name)
}

// CallCount returns how many times the named method was invoked.
func (s *BackendStub) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (s *BackendStub) PreviewTransfer(ctx context.Context, authorizationID, membershipID string) (*model.TransferPreview, error) {
	s.record("PreviewTransfer")
	if s.PreviewTransferFn != nil {
		return s.PreviewTransferFn(ctx, authorizationID, membershipID)
	}
	return &model.TransferPreview{}, nil
}

func (s *BackendStub) CreateTransfer(ctx context.Context, authorizationID, sellerID, orderID, membershipID string) (*model.BackendTransfer, error) {
	s.record("CreateTransfer")
	if s.CreateTransferFn != nil {
		return s.CreateTransferFn(ctx, authorizationID, sellerID, orderID, membershipID)
	}
	return &model.BackendTransfer{TransferID: "TRF-1", MembershipID: membershipID, Status: model.BackendStatusPending}, nil
}

func (s *BackendStub) GetTransfer(ctx context.Context, authorizationID, membershipID, transferID string) (*model.BackendTransfer, error) {
	s.record("GetTransfer")
	if s.GetTransferFn != nil {
		return s.GetTransferFn(ctx, authorizationID, membershipID, transferID)
	}
	return &model.BackendTransfer{TransferID: transferID, MembershipID: membershipID, Status: model.BackendStatusProcessed}, nil
}

func (s *BackendStub) CreatePreviewOrder(ctx context.Context, authorizationID, customerID, orderID string, lines []model.Line) (*model.BackendOrder, error) {
	s.record("CreatePreviewOrder")
	s.mu.Lock()
	s.PreviewOrders = append(s.PreviewOrders, PreviewOrderCall{CustomerID: customerID, OrderID: orderID, Lines: lines})
	s.mu.Unlock()
	if s.CreatePreviewOrderFn != nil {
		return s.CreatePreviewOrderFn(ctx, authorizationID, customerID, orderID, lines)
	}
	return &model.BackendOrder{OrderType: model.BackendOrderTypePreview, ExternalReferenceID: orderID}, nil
}

func (s *BackendStub) CreateNewOrder(ctx context.Context, authorizationID, customerID string, preview *model.BackendOrder) (*model.BackendOrder, error) {
	s.record("CreateNewOrder")
	if s.CreateNewOrderFn != nil {
		return s.CreateNewOrderFn(ctx, authorizationID, customerID, preview)
	}
	return &model.BackendOrder{OrderID: "P-NEW-1", OrderType: model.BackendOrderTypeNew, Status: model.BackendStatusPending}, nil
}

func (s *BackendStub) GetOrder(ctx context.Context, authorizationID, customerID, orderID string) (*model.BackendOrder, error) {
	s.record("GetOrder")
	if s.GetOrderFn != nil {
		return s.GetOrderFn(ctx, authorizationID, customerID, orderID)
	}
	return &model.BackendOrder{OrderID: orderID, OrderType: model.BackendOrderTypeNew, Status: model.BackendStatusPending}, nil
}

func (s *BackendStub) CreateReturnOrder(ctx context.Context, authorizationID, customerID string, order *model.BackendOrder, item model.BackendItem) (*model.BackendOrder, error) {
	s.record("CreateReturnOrder")
	s.mu.Lock()
	s.ReturnOrders = append(s.ReturnOrders, ReturnOrderCall{CustomerID: customerID, Order: *order, Item: item})
	s.mu.Unlock()
	if s.CreateReturnOrderFn != nil {
		return s.CreateReturnOrderFn(ctx, authorizationID, customerID, order, item)
	}
	return &model.BackendOrder{
		OrderID:          "R-" + order.OrderID,
		ReferenceOrderID: order.OrderID,
		OrderType:        model.BackendOrderTypeReturn,
		Status:           model.BackendStatusProcessed,
	}, nil
}

func (s *BackendStub) SearchNewAndReturnedOrders(ctx context.Context, authorizationID, customerID, sku, lineID string) ([]model.ReturnableOrder, error) {
	s.record("SearchNewAndReturnedOrders")
	if s.SearchFn != nil {
		return s.SearchFn(ctx, authorizationID, customerID, sku, lineID)
	}
	return nil, nil
}

func (s *BackendStub) CreatePreviewRenewal(ctx context.Context, authorizationID, customerID string) (*model.BackendOrder, error) {
	s.record("CreatePreviewRenewal")
	if s.CreatePreviewRenewalFn != nil {
		return s.CreatePreviewRenewalFn(ctx, authorizationID, customerID)
	}
	return &model.BackendOrder{OrderType: model.BackendOrderTypePreviewRenewal}, nil
}

func (s *BackendStub) GetSubscription(ctx context.Context, authorizationID, customerID, subscriptionID string) (*model.BackendSubscription, error) {
	s.record("GetSubscription")
	if s.GetSubscriptionFn != nil {
		return s.GetSubscriptionFn(ctx, authorizationID, customerID, subscriptionID)
	}
	return &model.BackendSubscription{
		SubscriptionID: subscriptionID,
		Status:         model.BackendStatusProcessed,
		CreationDate:   "2024-01-01",
		RenewalDate:    "2025-01-01",
		AutoRenewal:    model.AutoRenewal{Enabled: true},
	}, nil
}

func (s *BackendStub) GetSubscriptions(ctx context.Context, authorizationID, customerID string) ([]model.BackendSubscription, error) {
	s.record("GetSubscriptions")
	if s.GetSubscriptionsFn != nil {
		return s.GetSubscriptionsFn(ctx, authorizationID, customerID)
	}
	return nil, nil
}

func (s *BackendStub) UpdateSubscription(ctx context.Context, authorizationID, customerID, subscriptionID string, update model.SubscriptionUpdate) error {
	s.record("UpdateSubscription")
	s.mu.Lock()
	s.SubscriptionUpdates = append(s.SubscriptionUpdates, BackendSubscriptionCall{CustomerID: customerID, SubscriptionID: subscriptionID, Update: update})
	s.mu.Unlock()
	if s.UpdateSubscriptionFn != nil {
		return s.UpdateSubscriptionFn(ctx, authorizationID, customerID, subscriptionID, update)
	}
	return nil
}

func (s *BackendStub) GetCustomer(ctx context.Context, authorizationID, customerID string) (*model.Customer, error) {
	s.record("GetCustomer")
	if s.GetCustomerFn != nil {
		return s.GetCustomerFn(ctx, authorizationID, customerID)
	}
	return &model.Customer{CustomerID: customerID}, nil
}

func (s *BackendStub) CreateCustomerAccount(ctx context.Context, authorizationID, sellerID, externalID string, data model.CustomerData) (*model.Customer, error) {
	s.record("CreateCustomerAccount")
	s.mu.Lock()
	s.CustomerRequests = append(s.CustomerRequests, data)
	s.mu.Unlock()
	if s.CreateCustomerFn != nil {
		return s.CreateCustomerFn(ctx, authorizationID, sellerID, externalID, data)
	}
	return &model.Customer{CustomerID: "CUS-NEW"}, nil
}
