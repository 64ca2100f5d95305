package vipm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// Client exposes the licensing backend operations used by fulfillment flows.
// Every failure is a *errors.BackendError.
type Client interface {
	PreviewTransfer(ctx context.Context, authorizationID, membershipID string) (*model.TransferPreview, error)
	CreateTransfer(ctx context.Context, authorizationID, sellerID, orderID, membershipID string) (*model.BackendTransfer, error)
	GetTransfer(ctx context.Context, authorizationID, membershipID, transferID string) (*model.BackendTransfer, error)
	CreatePreviewOrder(ctx context.Context, authorizationID, customerID, orderID string, lines []model.Line) (*model.BackendOrder, error)
	CreateNewOrder(ctx context.Context, authorizationID, customerID string, preview *model.BackendOrder) (*model.BackendOrder, error)
	GetOrder(ctx context.Context, authorizationID, customerID, orderID string) (*model.BackendOrder, error)
	CreateReturnOrder(ctx context.Context, authorizationID, customerID string, order *model.BackendOrder, item model.BackendItem) (*model.BackendOrder, error)
	SearchNewAndReturnedOrders(ctx context.Context, authorizationID, customerID, sku, lineID string) ([]model.ReturnableOrder, error)
	CreatePreviewRenewal(ctx context.Context, authorizationID, customerID string) (*model.BackendOrder, error)
	GetSubscription(ctx context.Context, authorizationID, customerID, subscriptionID string) (*model.BackendSubscription, error)
	GetSubscriptions(ctx context.Context, authorizationID, customerID string) ([]model.BackendSubscription, error)
	UpdateSubscription(ctx context.Context, authorizationID, customerID, subscriptionID string, update model.SubscriptionUpdate) error
	GetCustomer(ctx context.Context, authorizationID, customerID string) (*model.Customer, error)
	CreateCustomerAccount(ctx context.Context, authorizationID, sellerID, externalID string, data model.CustomerData) (*model.Customer, error)
}

// HTTPClient implements Client via the backend REST API.
type HTTPClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates backend client with default timeout.
func NewHTTPClient(baseURL, token string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("backend url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		token:   token,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (c *HTTPClient) PreviewTransfer(ctx context.Context, authorizationID, membershipID string) (*model.TransferPreview, error) {
	var preview model.TransferPreview
	err := c.do(ctx, http.MethodGet, authorizationID, nil, &preview, "v3", "memberships", membershipID, "offers")
	if err != nil {
		return nil, err
	}
	return &preview, nil
}

type transferRequest struct {
	ResellerID          string `json:"resellerId"`
	ExternalReferenceID string `json:"externalReferenceId"`
}

func (c *HTTPClient) CreateTransfer(ctx context.Context, authorizationID, sellerID, orderID, membershipID string) (*model.BackendTransfer, error) {
	var transfer model.BackendTransfer
	body := transferRequest{ResellerID: sellerID, ExternalReferenceID: orderID}
	err := c.do(ctx, http.MethodPost, authorizationID, body, &transfer, "v3", "memberships", membershipID, "transfers")
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (c *HTTPClient) GetTransfer(ctx context.Context, authorizationID, membershipID, transferID string) (*model.BackendTransfer, error) {
	var transfer model.BackendTransfer
	err := c.do(ctx, http.MethodGet, authorizationID, nil, &transfer, "v3", "memberships", membershipID, "transfers", transferID)
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// CreatePreviewOrder prices the lines. Upsized lines order the delta, new and downsized lines
// order the full requested quantity since downsizes return the original line entirely.
func (c *HTTPClient) CreatePreviewOrder(ctx context.Context, authorizationID, customerID, orderID string, lines []model.Line) (*model.BackendOrder, error) {
	request := model.BackendOrder{
		OrderType:           model.BackendOrderTypePreview,
		ExternalReferenceID: orderID,
	}
	for _, line := range lines {
		quantity := line.Quantity
		if line.Change() == model.LineUpsize {
			quantity = line.Delta()
		}
		request.LineItems = append(request.LineItems, model.BackendItem{
			ExtLineItemNumber: LineNumber(line.ID),
			OfferID:           line.SKU(),
			Quantity:          quantity,
		})
	}
	return c.postOrder(ctx, authorizationID, customerID, request)
}

func (c *HTTPClient) CreateNewOrder(ctx context.Context, authorizationID, customerID string, preview *model.BackendOrder) (*model.BackendOrder, error) {
	request := *preview
	request.OrderType = model.BackendOrderTypeNew
	request.OrderID = ""
	request.Status = ""
	return c.postOrder(ctx, authorizationID, customerID, request)
}

func (c *HTTPClient) GetOrder(ctx context.Context, authorizationID, customerID, orderID string) (*model.BackendOrder, error) {
	var order model.BackendOrder
	err := c.do(ctx, http.MethodGet, authorizationID, nil, &order, "v3", "customers", customerID, "orders", orderID)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) CreateReturnOrder(ctx context.Context, authorizationID, customerID string, order *model.BackendOrder, item model.BackendItem) (*model.BackendOrder, error) {
	request := model.BackendOrder{
		OrderType:           model.BackendOrderTypeReturn,
		ReferenceOrderID:    order.OrderID,
		ExternalReferenceID: order.ExternalReferenceID,
		LineItems: []model.BackendItem{{
			ExtLineItemNumber: item.ExtLineItemNumber,
			OfferID:           item.OfferID,
			Quantity:          item.Quantity,
		}},
	}
	return c.postOrder(ctx, authorizationID, customerID, request)
}

type orderList struct {
	Items []model.BackendOrder `json:"items"`
}

func (c *HTTPClient) listOrders(ctx context.Context, authorizationID, customerID, orderType string) ([]model.BackendOrder, error) {
	var list orderList
	err := c.doQuery(ctx, http.MethodGet, authorizationID, url.Values{"order-type": {orderType}}, nil, &list, "v3", "customers", customerID, "orders")
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// SearchNewAndReturnedOrders finds the processed purchase lines for sku placed by the
// marketplace line, each paired with the return order already created for it.
func (c *HTTPClient) SearchNewAndReturnedOrders(ctx context.Context, authorizationID, customerID, sku, lineID string) ([]model.ReturnableOrder, error) {
	newOrders, err := c.listOrders(ctx, authorizationID, customerID, model.BackendOrderTypeNew)
	if err != nil {
		return nil, err
	}
	returnOrders, err := c.listOrders(ctx, authorizationID, customerID, model.BackendOrderTypeReturn)
	if err != nil {
		return nil, err
	}

	number := LineNumber(lineID)
	partial := model.PartialSKU(sku)
	var result []model.ReturnableOrder
	for _, order := range newOrders {
		if order.Status != model.BackendStatusProcessed {
			continue
		}
		for _, item := range order.LineItems {
			if item.PartialSKU() != partial || item.ExtLineItemNumber != number {
				continue
			}
			entry := model.ReturnableOrder{Order: order, Item: item}
			for i := range returnOrders {
				ret := returnOrders[i]
				if ret.ReferenceOrderID == order.OrderID && ret.Status != model.BackendStatusCancelled {
					entry.ReturnOrder = &ret
					break
				}
			}
			result = append(result, entry)
		}
	}
	return result, nil
}

func (c *HTTPClient) CreatePreviewRenewal(ctx context.Context, authorizationID, customerID string) (*model.BackendOrder, error) {
	return c.postOrder(ctx, authorizationID, customerID, model.BackendOrder{OrderType: model.BackendOrderTypePreviewRenewal})
}

func (c *HTTPClient) postOrder(ctx context.Context, authorizationID, customerID string, request model.BackendOrder) (*model.BackendOrder, error) {
	var order model.BackendOrder
	err := c.do(ctx, http.MethodPost, authorizationID, request, &order, "v3", "customers", customerID, "orders")
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) GetSubscription(ctx context.Context, authorizationID, customerID, subscriptionID string) (*model.BackendSubscription, error) {
	var sub model.BackendSubscription
	err := c.do(ctx, http.MethodGet, authorizationID, nil, &sub, "v3", "customers", customerID, "subscriptions", subscriptionID)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

type subscriptionList struct {
	Items []model.BackendSubscription `json:"items"`
}

func (c *HTTPClient) GetSubscriptions(ctx context.Context, authorizationID, customerID string) ([]model.BackendSubscription, error) {
	var list subscriptionList
	err := c.do(ctx, http.MethodGet, authorizationID, nil, &list, "v3", "customers", customerID, "subscriptions")
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

type autoRenewalPatch struct {
	Enabled         *bool `json:"enabled,omitempty"`
	RenewalQuantity *int  `json:"renewalQuantity,omitempty"`
}

type subscriptionPatch struct {
	AutoRenewal autoRenewalPatch `json:"autoRenewal"`
}

func (c *HTTPClient) UpdateSubscription(ctx context.Context, authorizationID, customerID, subscriptionID string, update model.SubscriptionUpdate) error {
	body := subscriptionPatch{AutoRenewal: autoRenewalPatch{Enabled: update.AutoRenewal, RenewalQuantity: update.RenewalQuantity}}
	if body.AutoRenewal.Enabled == nil && body.AutoRenewal.RenewalQuantity != nil {
		enabled := true
		body.AutoRenewal.Enabled = &enabled
	}
	return c.do(ctx, http.MethodPatch, authorizationID, body, nil, "v3", "customers", customerID, "subscriptions", subscriptionID)
}

func (c *HTTPClient) GetCustomer(ctx context.Context, authorizationID, customerID string) (*model.Customer, error) {
	var customer model.Customer
	err := c.do(ctx, http.MethodGet, authorizationID, nil, &customer, "v3", "customers", customerID)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

type customerRequest struct {
	ResellerID     string               `json:"resellerId"`
	ExternalRefID  string               `json:"externalReferenceId"`
	CompanyProfile model.CompanyProfile `json:"companyProfile"`
}

func (c *HTTPClient) CreateCustomerAccount(ctx context.Context, authorizationID, sellerID, externalID string, data model.CustomerData) (*model.Customer, error) {
	body := customerRequest{
		ResellerID:    sellerID,
		ExternalRefID: externalID,
		CompanyProfile: model.CompanyProfile{
			CompanyName:       data.CompanyName,
			PreferredLanguage: data.PreferredLanguage,
			Address:           data.Address,
			Contacts:          []model.Contact{data.Contact},
		},
	}
	var customer model.Customer
	if err := c.do(ctx, http.MethodPost, authorizationID, body, &customer, "v3", "customers"); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *HTTPClient) do(ctx context.Context, method, authorizationID string, body, out any, segments ...string) error {
	return c.doQuery(ctx, method, authorizationID, nil, body, out, segments...)
}

func (c *HTTPClient) doQuery(ctx context.Context, method, authorizationID string, query url.Values, body, out any, segments ...string) error {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(append([]string{endpoint.Path}, segments...)...)
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Authorization-Id", authorizationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	default:
		var payload apiError
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.logger.Debug("backend error body is not json", slog.Int("status", resp.StatusCode))
		}
		be := classify(resp.StatusCode, http.StatusText(resp.StatusCode), &payload)
		c.logger.Warn("backend request failed",
			slog.String("method", method),
			slog.String("path", endpoint.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", be.Code),
			slog.String("kind", be.Kind.String()),
		)
		return be
	}
}

// LineNumber extracts the numeric suffix of a marketplace line id (ALI-1234-1234-0003 -> 3).
func LineNumber(lineID string) int {
	idx := strings.LastIndex(lineID, "-")
	n, err := strconv.Atoi(lineID[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
