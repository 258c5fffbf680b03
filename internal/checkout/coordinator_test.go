package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubmitter struct {
	mu       sync.Mutex
	requests []SaleRequest
	ctxErrs  []error
	conf     *SaleConfirmation
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (s *stubSubmitter) SubmitSale(ctx context.Context, req SaleRequest) (*SaleConfirmation, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	if s.entered != nil {
		close(s.entered)
	}
	if s.block != nil {
		<-s.block
	}
	return s.conf, s.err
}

func (s *stubSubmitter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type stubRefresher struct {
	calls int
	err   error
}

func (r *stubRefresher) Refresh(ctx context.Context) error {
	r.calls++
	return r.err
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func product(id, price, stock string) catalog.Product {
	return catalog.Product{
		ID:            id,
		Name:          "Product " + id,
		UnitPrice:     dec(price),
		UnitOfMeasure: enums.UnitOfMeasureUnit,
		CurrentStock:  dec(stock),
		Active:        true,
	}
}

func newCoordinator(t *testing.T, submitter Submitter, refresher Refresher) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(CoordinatorParams{
		Submitter: submitter,
		Refresher: refresher,
		Metrics:   metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
		Now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return c
}

func sessionWithLines(t *testing.T) *cart.Session {
	t.Helper()
	s := cart.NewSession("sess-1", time.Now())
	require.NoError(t, s.Cart.AddProduct(product("A", "10", "5"), dec("2")))
	require.NoError(t, s.Cart.AddProduct(product("B", "3.5", "100"), dec("4")))
	return s
}

func confirmed() *SaleConfirmation {
	return &SaleConfirmation{SaleID: "sale-77", CreatedAt: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)}
}

func TestCheckoutEmptyCartNeverSubmits(t *testing.T) {
	submitter := &stubSubmitter{conf: confirmed()}
	refresher := &stubRefresher{}
	c := newCoordinator(t, submitter, refresher)

	_, err := c.Checkout(context.Background(), cart.NewSession("sess-1", time.Now()))

	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEmptyCart))
	assert.Equal(t, 0, submitter.calls())
	assert.Equal(t, 0, refresher.calls)
}

func TestCheckoutScenarioCommitsAndClears(t *testing.T) {
	submitter := &stubSubmitter{conf: confirmed()}
	refresher := &stubRefresher{}
	c := newCoordinator(t, submitter, refresher)

	a := product("A", "10", "5")
	b := product("B", "3.5", "100")
	s := cart.NewSession("sess-1", time.Now())
	require.NoError(t, s.Cart.AddProduct(a, dec("2")))
	require.NoError(t, s.Cart.AddProduct(b, dec("4")))
	require.True(t, cart.IsInsufficientStock(s.Cart.AddProduct(a, dec("4"))))
	require.NoError(t, s.Cart.UpdateQuantity("A", dec("5")))
	require.True(t, s.Cart.Total().Equal(dec("64")))

	conf, err := c.Checkout(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "sale-77", conf.SaleID)
	assert.True(t, conf.Total.Equal(dec("64")))
	assert.True(t, s.Cart.IsEmpty())
	assert.True(t, s.Cart.Total().IsZero())
	assert.Equal(t, 1, refresher.calls)

	require.Equal(t, 1, submitter.calls())
	req := submitter.requests[0]
	assert.True(t, req.Total.Equal(dec("64")))
	require.Len(t, req.Details, 2)
	assert.Equal(t, "A", req.Details[0].ProductID)
	assert.True(t, req.Details[0].Subtotal.Equal(dec("50")))
	assert.True(t, req.Details[1].Subtotal.Equal(dec("14")))
}

func TestCheckoutBuildsDefaultCustomer(t *testing.T) {
	submitter := &stubSubmitter{conf: confirmed()}
	c := newCoordinator(t, submitter, &stubRefresher{})

	s := sessionWithLines(t)
	s.Customer = cart.Customer{Name: "   ", Phone: "", Email: " "}
	s.PaymentMethod = enums.PaymentMethodCard

	_, err := c.Checkout(context.Background(), s)
	require.NoError(t, err)

	req := submitter.requests[0]
	assert.Equal(t, DefaultCustomerName, req.CustomerName)
	assert.Nil(t, req.CustomerPhone)
	assert.Nil(t, req.CustomerEmail)
	assert.Equal(t, enums.PaymentMethodCard, req.PaymentMethod)
}

func TestCheckoutFailureLeavesSessionUntouched(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		conf       *SaleConfirmation
		wantReason FailureReason
		wantMsg    string
	}{
		{name: "network", err: NewNetworkError("connection refused", errors.New("dial tcp")), wantReason: ReasonNetwork},
		{name: "rejected", err: NewRejectedError("stock for A is 3"), wantReason: ReasonRejected, wantMsg: "stock for A is 3"},
		{name: "untyped", err: errors.New("broken pipe"), wantReason: ReasonNetwork},
		{name: "timeout", err: context.DeadlineExceeded, wantReason: ReasonNetwork, wantMsg: "sale service timed out"},
		{name: "no confirmation", wantReason: ReasonNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &stubSubmitter{err: tt.err, conf: tt.conf}
			refresher := &stubRefresher{}
			c := newCoordinator(t, submitter, refresher)

			s := sessionWithLines(t)
			s.Customer = cart.Customer{Name: "Ana"}
			s.PaymentMethod = enums.PaymentMethodTransfer
			beforeLines := s.Cart.Lines()

			_, err := c.Checkout(context.Background(), s)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCheckoutFailed))

			reason, ok := FailureReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantReason, reason)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, pkgerrors.As(err).Message())
			}

			assert.Equal(t, beforeLines, s.Cart.Lines())
			assert.Equal(t, cart.Customer{Name: "Ana"}, s.Customer)
			assert.Equal(t, enums.PaymentMethodTransfer, s.PaymentMethod)
			assert.Equal(t, 0, refresher.calls)
			assert.False(t, c.InProgress(s.ID))
		})
	}
}

func TestCheckoutRetryAfterFailure(t *testing.T) {
	submitter := &stubSubmitter{err: NewNetworkError("timeout", nil)}
	refresher := &stubRefresher{}
	c := newCoordinator(t, submitter, refresher)
	s := sessionWithLines(t)

	_, err := c.Checkout(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, 1, submitter.calls())

	submitter.err = nil
	submitter.conf = confirmed()
	_, err = c.Checkout(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, submitter.calls())
	assert.Equal(t, 1, refresher.calls)
}

func TestCheckoutRefreshFailureDoesNotFailSale(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("catalog down")}
	c := newCoordinator(t, &stubSubmitter{conf: confirmed()}, refresher)
	s := sessionWithLines(t)

	conf, err := c.Checkout(context.Background(), s)
	require.NoError(t, err)
	assert.NotNil(t, conf)
	assert.True(t, s.Cart.IsEmpty())
	assert.Equal(t, 1, refresher.calls)
}

func TestCheckoutInProgressRejectsSecondAttempt(t *testing.T) {
	submitter := &stubSubmitter{conf: confirmed(), block: make(chan struct{}), entered: make(chan struct{})}
	c := newCoordinator(t, submitter, &stubRefresher{})
	s := sessionWithLines(t)
	other := sessionWithLines(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Checkout(context.Background(), s)
		done <- err
	}()
	<-submitter.entered

	assert.True(t, c.InProgress(s.ID))

	_, err := c.Checkout(context.Background(), other)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	close(submitter.block)
	require.NoError(t, <-done)
	assert.False(t, c.InProgress(s.ID))
	assert.Equal(t, 1, submitter.calls())
}

func TestCheckoutSubmitIgnoresCallerCancellation(t *testing.T) {
	submitter := &stubSubmitter{conf: confirmed()}
	c := newCoordinator(t, submitter, &stubRefresher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Checkout(ctx, sessionWithLines(t))
	require.NoError(t, err)
	assert.NoError(t, submitter.ctxErrs[0])
}

func TestNewCoordinatorRequiresCollaborators(t *testing.T) {
	_, err := NewCoordinator(CoordinatorParams{Refresher: &stubRefresher{}})
	assert.Error(t, err)
	_, err = NewCoordinator(CoordinatorParams{Submitter: &stubSubmitter{}})
	assert.Error(t, err)
}
