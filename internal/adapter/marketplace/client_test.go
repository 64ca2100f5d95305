package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(srv.URL, "mpt-token", testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestNewClientUsesConfig(t *testing.T) {
	cfg := &config.Config{MarketplaceURL: "https://mpt.example.com", MarketplaceToken: "token"}
	client, err := newClient(clientParams{Config: cfg, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected client instance")
	}
	if _, err := NewHTTPClient("relative/path", "", testLogger()); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestGetOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/commerce/orders/ORD-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer mpt-token" {
			t.Errorf("missing bearer token")
		}
		_, _ = io.WriteString(w, `{"id":"ORD-1","type":"Change","parameters":{"fulfillment":[{"externalId":"retryCount","value":"3"}]}}`)
	})

	order, err := client.GetOrder(context.Background(), "ORD-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Type != model.OrderTypeChange || order.RetryCount() != 3 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestNotFoundMapsToDomainError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetAgreement(context.Background(), "AGR-1")
	if !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServerErrorIsReturned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.FailOrder(context.Background(), "ORD-1", "boom"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFailOrderSendsReason(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/commerce/orders/ORD-1/fail" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body failRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.StatusNotes.Message != "Max processing attempts reached (10)." {
			t.Errorf("unexpected reason %q", body.StatusNotes.Message)
		}
		_, _ = io.WriteString(w, `{"id":"ORD-1","status":"Failed"}`)
	})

	order, err := client.FailOrder(context.Background(), "ORD-1", "Max processing attempts reached (10).")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != model.OrderStatusFailed {
		t.Fatalf("unexpected status %s", order.Status)
	}
}

func TestUpdateAgreementSendsNumericPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"unitPP":12.5`) {
			t.Errorf("expected numeric price, got %s", raw)
		}
		w.WriteHeader(http.StatusOK)
	})

	lines := []LinePrice{{ID: "ALI-1-0001", Price: model.Price{UnitPP: decimal.RequireFromString("12.5")}}}
	if err := client.UpdateAgreement(context.Background(), "AGR-1", lines, model.Parameters{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListAgreementsBuildsFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "in(id,(AGR-1,AGR-2))") {
			t.Errorf("expected id filter, got %s", r.URL.RawQuery)
		}
		if !strings.Contains(r.URL.RawQuery, "in(product.id,(PRD-1))") {
			t.Errorf("expected product filter, got %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"AGR-1"},{"id":"AGR-2"}]}`)
	})

	agreements, err := client.ListAgreements(context.Background(), AgreementFilter{
		ProductIDs: []string{"PRD-1"},
		IDs:        []string{"AGR-1", "AGR-2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agreements) != 2 {
		t.Fatalf("expected two agreements, got %d", len(agreements))
	}
}

func TestOneTimeItemsAreFlagged(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/catalog/items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"ITM-1"}]}`)
	})

	items, err := client.OneTimeItems(context.Background(), "PRD-1", []string{"ITM-1", "ITM-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || !items[0].OneTime {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestProductTemplateFallsBackToDefault(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/catalog/products/PRD-1/templates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"TPL-1","name":"Other"},{"id":"TPL-2","name":"Default","default":true}]}`)
	})

	tpl, err := client.ProductTemplate(context.Background(), "PRD-1", model.OrderStatusCompleted, "Missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.ID != "TPL-2" {
		t.Fatalf("expected default template, got %+v", tpl)
	}

	tpl, err = client.ProductTemplate(context.Background(), "PRD-1", model.OrderStatusCompleted, "Other")
	if err != nil || tpl.ID != "TPL-1" {
		t.Fatalf("expected named template, got %+v, %v", tpl, err)
	}
}

func TestProductTemplateNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	})

	_, err := client.ProductTemplate(context.Background(), "PRD-1", model.OrderStatusQuerying, "Any")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}
