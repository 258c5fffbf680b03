package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fruteria-pos/api/controllers"
	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/internal/checkout"
	"github.com/angelmondragon/fruteria-pos/internal/sales"
	"github.com/angelmondragon/fruteria-pos/internal/sessions"
	"github.com/angelmondragon/fruteria-pos/pkg/config"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	"github.com/angelmondragon/fruteria-pos/pkg/metrics"
	pkgredis "github.com/angelmondragon/fruteria-pos/pkg/redis"
)

type stubBackend struct {
	mu      sync.Mutex
	submits int
}

func (b *stubBackend) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return []catalog.Product{
		{ID: "A", Name: "Manzana", Category: "Fruta", UnitPrice: decimal.RequireFromString("12.50"), UnitOfMeasure: enums.UnitOfMeasureKg, CurrentStock: decimal.NewFromInt(10), Active: true},
		{ID: "B", Name: "Platano", Category: "Fruta", UnitPrice: decimal.RequireFromString("8"), UnitOfMeasure: enums.UnitOfMeasureKg, CurrentStock: decimal.Zero, Active: true},
	}, nil
}

func (b *stubBackend) SubmitSale(ctx context.Context, req checkout.SaleRequest) (*checkout.SaleConfirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits++
	return &checkout.SaleConfirmation{
		SaleID:    fmt.Sprintf("S-%d", b.submits),
		CreatedAt: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC),
		Total:     req.Total,
	}, nil
}

func (b *stubBackend) ListSales(ctx context.Context) ([]sales.Sale, error) {
	return []sales.Sale{{ID: "S-1", CustomerName: "Cliente General"}}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.ErrNil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

type testServer struct {
	handler http.Handler
	backend *stubBackend
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logg := logger.Nop()
	backend := &stubBackend{}

	view, err := catalog.NewView(backend)
	require.NoError(t, err)
	require.NoError(t, view.Refresh(context.Background()))

	registry := prometheus.NewRegistry()
	coordinator, err := checkout.NewCoordinator(checkout.CoordinatorParams{
		Submitter: backend,
		Refresher: view,
		Metrics:   metrics.NewCheckoutMetrics(registry),
		Logger:    logg,
	})
	require.NoError(t, err)

	svc, err := sessions.NewService(sessions.ServiceParams{
		Store:    sessions.NewMemoryStore(),
		Catalog:  view,
		Checkout: coordinator,
		Logger:   logg,
	})
	require.NoError(t, err)

	ledger, err := sales.NewLedger(backend)
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}}}
	handler := NewRouter(cfg, logg, registry, map[string]controllers.Pinger{}, view, svc, ledger, nil,
		&memoryIdempotency{data: map[string]string{}})
	return &testServer{handler: handler, backend: backend}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	live := srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "test", live.Header().Get("X-Fruteria-Env"))

	ready := srv.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, ready.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/health/live", "", map[string]string{"X-Request-Id": "till-7"})
	assert.Equal(t, "till-7", resp.Header().Get("X-Request-Id"))
}

func TestCatalogListsOnlySellable(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Products []catalog.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "A", body.Products[0].ID)
}

func TestSaleFlowWithIdempotentCheckout(t *testing.T) {
	srv := newTestServer(t)

	opened := srv.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, opened.Code)
	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, opened).Data, &session))
	require.NotEmpty(t, session.ID)
	base := "/api/v1/sessions/" + session.ID

	added := srv.do(t, http.MethodPost, base+"/lines", `{"productId":"A","quantity":"2"}`, nil)
	require.Equal(t, http.StatusOK, added.Code)

	tooMuch := srv.do(t, http.MethodPost, base+"/lines", `{"productId":"A","quantity":"9"}`, nil)
	require.Equal(t, http.StatusConflict, tooMuch.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, tooMuch).Error.Code)

	details := srv.do(t, http.MethodPatch, base, `{"paymentMethod":"card"}`, nil)
	require.Equal(t, http.StatusOK, details.Code)

	headers := map[string]string{"Idempotency-Key": "till-1-sale-1"}
	first := srv.do(t, http.MethodPost, base+"/checkout", "", headers)
	require.Equal(t, http.StatusCreated, first.Code)

	var result struct {
		Sale struct {
			SaleID string          `json:"saleId"`
			Total  decimal.Decimal `json:"total"`
		} `json:"sale"`
		Session struct {
			Lines []json.RawMessage `json:"lines"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(decode(t, first).Data, &result))
	assert.Equal(t, "S-1", result.Sale.SaleID)
	assert.True(t, result.Sale.Total.Equal(decimal.RequireFromString("25")))
	assert.Empty(t, result.Session.Lines)

	replay := srv.do(t, http.MethodPost, base+"/checkout", "", headers)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	assert.Equal(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, srv.backend.submits)

	again := srv.do(t, http.MethodPost, base+"/checkout", "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, again.Code)
	assert.Equal(t, "EMPTY_CART", decode(t, again).Error.Code)
}

func TestCancelledSessionIsGone(t *testing.T) {
	srv := newTestServer(t)

	opened := srv.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, opened).Data, &session))

	cancelled := srv.do(t, http.MethodDelete, "/api/v1/sessions/"+session.ID, "", nil)
	require.Equal(t, http.StatusNoContent, cancelled.Code)

	missing := srv.do(t, http.MethodGet, "/api/v1/sessions/"+session.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestSalesAndDisabledReceipts(t *testing.T) {
	srv := newTestServer(t)

	list := srv.do(t, http.MethodGet, "/api/v1/sales", "", nil)
	assert.Equal(t, http.StatusOK, list.Code)

	receipts := srv.do(t, http.MethodGet, "/api/v1/receipts", "", nil)
	assert.Equal(t, http.StatusNotFound, receipts.Code)
}

func TestMetricsExposeCheckoutCounters(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "pos_checkout_success_total")
}
