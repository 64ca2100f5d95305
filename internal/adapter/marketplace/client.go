package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

func init() {
	// The platform expects numeric prices, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrTemplateNotFound is returned when neither the named nor a default template exists.
var ErrTemplateNotFound = errors.New("template not found")

// LinePrice sets the unit price of an existing order or agreement line.
type LinePrice struct {
	ID    string      `json:"id"`
	Price model.Price `json:"price"`
}

// OrderUpdate is a partial order update; nil fields are left untouched.
type OrderUpdate struct {
	Lines       []LinePrice        `json:"lines,omitempty"`
	Parameters  *model.Parameters  `json:"parameters,omitempty"`
	ExternalIDs *model.ExternalIDs `json:"externalIds,omitempty"`
	Template    *model.Template    `json:"template,omitempty"`
}

// AgreementFilter selects agreements for price synchronization.
type AgreementFilter struct {
	ProductIDs  []string
	IDs         []string
	NextSyncDue *time.Time
	ActiveOnly  bool
}

// Client exposes the marketplace platform operations used by fulfillment flows.
type Client interface {
	ListProcessingOrders(ctx context.Context, productIDs []string, limit int) ([]model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	UpdateOrder(ctx context.Context, orderID string, update OrderUpdate) (*model.Order, error)
	CompleteOrder(ctx context.Context, orderID string, template model.Template) (*model.Order, error)
	FailOrder(ctx context.Context, orderID, reason string) (*model.Order, error)
	QueryOrder(ctx context.Context, orderID string, params model.Parameters, template *model.Template) (*model.Order, error)
	CreateSubscription(ctx context.Context, orderID string, sub model.Subscription) (*model.Subscription, error)
	UpdateSubscription(ctx context.Context, orderID, subscriptionID string, params model.Parameters) error

	GetAgreement(ctx context.Context, agreementID string) (*model.Agreement, error)
	ListAgreements(ctx context.Context, filter AgreementFilter) ([]model.Agreement, error)
	UpdateAgreement(ctx context.Context, agreementID string, lines []LinePrice, params model.Parameters) error
	GetAgreementSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	UpdateAgreementSubscription(ctx context.Context, subscriptionID string, lines []LinePrice, params model.Parameters) error

	ItemsBySKUs(ctx context.Context, productID string, skus []string) ([]model.Item, error)
	OneTimeItems(ctx context.Context, productID string, itemIDs []string) ([]model.Item, error)
	PriceListItems(ctx context.Context, priceListID string, itemIDs []string) ([]model.PriceListItem, error)
	ProductTemplate(ctx context.Context, productID string, status model.OrderStatus, name string) (*model.Template, error)
	GetBuyer(ctx context.Context, buyerID string) (*model.Buyer, error)
}

// HTTPClient implements Client via the platform REST API.
type HTTPClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates marketplace client with default timeout.
func NewHTTPClient(baseURL, token string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse marketplace url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("marketplace url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		token:   token,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

type page[T any] struct {
	Data []T `json:"data"`
}

func (c *HTTPClient) ListProcessingOrders(ctx context.Context, productIDs []string, limit int) ([]model.Order, error) {
	rql := fmt.Sprintf("and(in(agreement.product.id,(%s)),eq(status,%s))&order=audit.created.at&limit=%d",
		strings.Join(productIDs, ","), model.OrderStatusProcessing, limit)
	var result page[model.Order]
	if err := c.get(ctx, rql, &result, "commerce", "orders"); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (c *HTTPClient) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	if err := c.get(ctx, "select=agreement,subscriptions,lines,parameters", &order, "commerce", "orders", orderID); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) UpdateOrder(ctx context.Context, orderID string, update OrderUpdate) (*model.Order, error) {
	var order model.Order
	if err := c.send(ctx, http.MethodPut, update, &order, "commerce", "orders", orderID); err != nil {
		return nil, err
	}
	return &order, nil
}

type completeRequest struct {
	Template model.Template `json:"template"`
}

func (c *HTTPClient) CompleteOrder(ctx context.Context, orderID string, template model.Template) (*model.Order, error) {
	var order model.Order
	if err := c.send(ctx, http.MethodPost, completeRequest{Template: template}, &order, "commerce", "orders", orderID, "complete"); err != nil {
		return nil, err
	}
	return &order, nil
}

type statusNotes struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type failRequest struct {
	StatusNotes statusNotes `json:"statusNotes"`
}

func (c *HTTPClient) FailOrder(ctx context.Context, orderID, reason string) (*model.Order, error) {
	var order model.Order
	body := failRequest{StatusNotes: statusNotes{ID: "VIPM001", Message: reason}}
	if err := c.send(ctx, http.MethodPost, body, &order, "commerce", "orders", orderID, "fail"); err != nil {
		return nil, err
	}
	return &order, nil
}

type queryRequest struct {
	Parameters model.Parameters `json:"parameters"`
	Template   *model.Template  `json:"template,omitempty"`
}

func (c *HTTPClient) QueryOrder(ctx context.Context, orderID string, params model.Parameters, template *model.Template) (*model.Order, error) {
	var order model.Order
	body := queryRequest{Parameters: params, Template: template}
	if err := c.send(ctx, http.MethodPost, body, &order, "commerce", "orders", orderID, "query"); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) CreateSubscription(ctx context.Context, orderID string, sub model.Subscription) (*model.Subscription, error) {
	var created model.Subscription
	if err := c.send(ctx, http.MethodPost, sub, &created, "commerce", "orders", orderID, "subscriptions"); err != nil {
		return nil, err
	}
	return &created, nil
}

type subscriptionUpdate struct {
	Lines      []LinePrice      `json:"lines,omitempty"`
	Parameters model.Parameters `json:"parameters"`
}

func (c *HTTPClient) UpdateSubscription(ctx context.Context, orderID, subscriptionID string, params model.Parameters) error {
	return c.send(ctx, http.MethodPut, subscriptionUpdate{Parameters: params}, nil, "commerce", "orders", orderID, "subscriptions", subscriptionID)
}

func (c *HTTPClient) GetAgreement(ctx context.Context, agreementID string) (*model.Agreement, error) {
	var agreement model.Agreement
	if err := c.get(ctx, "select=lines,parameters,subscriptions,listing", &agreement, "commerce", "agreements", agreementID); err != nil {
		return nil, err
	}
	return &agreement, nil
}

func (c *HTTPClient) ListAgreements(ctx context.Context, filter AgreementFilter) ([]model.Agreement, error) {
	var conditions []string
	if len(filter.ProductIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("in(product.id,(%s))", strings.Join(filter.ProductIDs, ",")))
	}
	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("in(id,(%s))", strings.Join(filter.IDs, ",")))
	}
	if filter.NextSyncDue != nil {
		conditions = append(conditions, fmt.Sprintf(
			"any(parameters.fulfillment,and(eq(externalId,%s),lte(displayValue,%s)))",
			model.ParamNextSync, model.FormatDate(*filter.NextSyncDue)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "eq(status,Active)")
	}
	rql := "select=lines,parameters,subscriptions,listing"
	if len(conditions) > 0 {
		rql = fmt.Sprintf("and(%s)&%s", strings.Join(conditions, ","), rql)
	}

	var result page[model.Agreement]
	if err := c.get(ctx, rql, &result, "commerce", "agreements"); err != nil {
		return nil, err
	}
	return result.Data, nil
}

type agreementUpdate struct {
	Lines      []LinePrice      `json:"lines,omitempty"`
	Parameters model.Parameters `json:"parameters"`
}

func (c *HTTPClient) UpdateAgreement(ctx context.Context, agreementID string, lines []LinePrice, params model.Parameters) error {
	return c.send(ctx, http.MethodPut, agreementUpdate{Lines: lines, Parameters: params}, nil, "commerce", "agreements", agreementID)
}

func (c *HTTPClient) GetAgreementSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	if err := c.get(ctx, "", &sub, "commerce", "subscriptions", subscriptionID); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *HTTPClient) UpdateAgreementSubscription(ctx context.Context, subscriptionID string, lines []LinePrice, params model.Parameters) error {
	return c.send(ctx, http.MethodPut, subscriptionUpdate{Lines: lines, Parameters: params}, nil, "commerce", "subscriptions", subscriptionID)
}

func (c *HTTPClient) ItemsBySKUs(ctx context.Context, productID string, skus []string) ([]model.Item, error) {
	rql := fmt.Sprintf("and(eq(product.id,%s),in(externalIds.vendor,(%s)))", productID, strings.Join(skus, ","))
	var result page[model.Item]
	if err := c.get(ctx, rql, &result, "catalog", "items"); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (c *HTTPClient) OneTimeItems(ctx context.Context, productID string, itemIDs []string) ([]model.Item, error) {
	rql := fmt.Sprintf("and(eq(product.id,%s),in(id,(%s)),eq(terms.period,one-time))", productID, strings.Join(itemIDs, ","))
	var result page[model.Item]
	if err := c.get(ctx, rql, &result, "catalog", "items"); err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i].OneTime = true
	}
	return result.Data, nil
}

func (c *HTTPClient) PriceListItems(ctx context.Context, priceListID string, itemIDs []string) ([]model.PriceListItem, error) {
	rql := fmt.Sprintf("in(item.id,(%s))", strings.Join(itemIDs, ","))
	var result page[model.PriceListItem]
	if err := c.get(ctx, rql, &result, "catalog", "price-lists", priceListID, "items"); err != nil {
		return nil, err
	}
	return result.Data, nil
}

type templateEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// ProductTemplate returns the template with the given name for the status, falling back to
// the product default for that status.
func (c *HTTPClient) ProductTemplate(ctx context.Context, productID string, status model.OrderStatus, name string) (*model.Template, error) {
	rql := fmt.Sprintf("eq(type,Order%s)", status)
	var result page[templateEntry]
	if err := c.get(ctx, rql, &result, "catalog", "products", productID, "templates"); err != nil {
		return nil, err
	}
	var fallback *model.Template
	for _, t := range result.Data {
		if t.Name == name {
			return &model.Template{ID: t.ID, Name: t.Name}, nil
		}
		if t.Default && fallback == nil {
			fallback = &model.Template{ID: t.ID, Name: t.Name}
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, status, name)
	}
	return fallback, nil
}

func (c *HTTPClient) GetBuyer(ctx context.Context, buyerID string) (*model.Buyer, error) {
	var buyer model.Buyer
	if err := c.get(ctx, "", &buyer, "accounts", "buyers", buyerID); err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (c *HTTPClient) get(ctx context.Context, rawQuery string, out any, segments ...string) error {
	return c.do(ctx, http.MethodGet, rawQuery, nil, out, segments...)
}

func (c *HTTPClient) send(ctx context.Context, method string, body, out any, segments ...string) error {
	return c.do(ctx, method, "", body, out, segments...)
}

func (c *HTTPClient) do(ctx context.Context, method, rawQuery string, body, out any, segments ...string) error {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(append([]string{endpoint.Path, "v1"}, segments...)...)
	endpoint.RawQuery = rawQuery

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

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, endpoint.Path, domainErrors.ErrNotFound)
	default:
		raw, _ := io.ReadAll(resp.Body)
		c.logger.Error("marketplace request failed",
			slog.String("method", method),
			slog.String("path", endpoint.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)),
		)
		return fmt.Errorf("marketplace error: %s", resp.Status)
	}
}
