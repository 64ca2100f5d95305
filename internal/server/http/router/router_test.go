package router

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/fulfillment"
	"github.com/polkiloo/vipm-fulfillment/internal/migration"
	pkgAuth "github.com/polkiloo/vipm-fulfillment/internal/pkg/auth"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/handlers"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/middleware"
	testhelpers "github.com/polkiloo/vipm-fulfillment/internal/test"
)

type facadeStub struct {
	processed []string
}

func (s *facadeStub) ProcessOrderByID(_ context.Context, orderID string) (fulfillment.Outcome, error) {
	s.processed = append(s.processed, orderID)
	return fulfillment.Outcome{Kind: fulfillment.OutcomeCompleted}, nil
}

func (s *facadeStub) ValidateOrder(context.Context, *model.Order) (bool, error) {
	return false, nil
}

func (s *facadeStub) RegisterTransfer(_ context.Context, in model.TransferRegistration) (*model.Transfer, error) {
	return &model.Transfer{ID: 1, ProductID: in.ProductID, MembershipID: in.MembershipID, Status: model.TransferStatusPending}, nil
}

func (s *facadeStub) Transfers(context.Context, string, model.TransferStatus) ([]model.Transfer, error) {
	return nil, nil
}

func (s *facadeStub) ProcessTransfers(context.Context) (migration.Report, error) {
	return migration.Report{}, nil
}

func (s *facadeStub) CheckRunningTransfers(context.Context) (migration.Report, error) {
	return migration.Report{}, nil
}

func (s *facadeStub) SyncPrices(context.Context, []string, pricesync.Options) (pricesync.Report, error) {
	return pricesync.Report{}, nil
}

var _ handlers.FulfillmentFacade = (*facadeStub)(nil)

func newTestEngine(facade *facadeStub, signer *pkgAuth.HMACVerifier) *gin.Engine {
	return Setup(Deps{
		Facade:     facade,
		Keys:       testhelpers.KeyVerifierStub{Key: "operator"},
		Signatures: signer,
		Logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
}

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	facade := &facadeStub{}
	signer := pkgAuth.NewHMACVerifier("hook-secret")
	engine := newTestEngine(facade, signer)

	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for health, got %d", resp.Code)
	}
	if resp.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}

	payload := []byte(`{"id":"ORD-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/orders", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SignatureHeader, "sha256="+signer.Sign(payload))
	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for signed event, got %d", resp.Code)
	}
	if len(facade.processed) != 1 || facade.processed[0] != "ORD-1" {
		t.Fatalf("expected order to be processed, got %v", facade.processed)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/events/orders", bytes.NewReader(payload))
	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for unsigned event, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/validate", bytes.NewReader([]byte(`{"id":"ORD-2","type":"Purchase"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for validation, got %d", resp.Code)
	}
}

func TestOperatorRoutesRequireKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := newTestEngine(&facadeStub{}, pkgAuth.NewHMACVerifier(""))

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/transfers?product_id=PRD-1"},
		{http.MethodPost, "/api/v1/jobs/process-transfers"},
		{http.MethodPost, "/api/v1/jobs/check-running-transfers"},
		{http.MethodPost, "/api/v1/jobs/sync-prices"},
	}
	for _, r := range routes {
		resp := httptest.NewRecorder()
		engine.ServeHTTP(resp, httptest.NewRequest(r.method, r.path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 without key, got %d", r.method, r.path, resp.Code)
		}

		req := httptest.NewRequest(r.method, r.path, nil)
		req.Header.Set(middleware.APIKeyHeader, "operator")
		resp = httptest.NewRecorder()
		engine.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s %s: expected 200 with key, got %d", r.method, r.path, resp.Code)
		}
	}

	body := []byte(`{"product_id":"PRD-1","authorization_id":"AUT-1","membership_id":"MEMBER-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewReader(body))
	req.Header.Set(middleware.APIKeyHeader, "operator")
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for registration, got %d", resp.Code)
	}
}
