package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	"github.com/angelmondragon/fruteria-pos/pkg/metrics"
)

// Submitter sends one sale to the sale service. Failures should be *SaleError.
type Submitter interface {
	SubmitSale(ctx context.Context, req SaleRequest) (*SaleConfirmation, error)
}

// Refresher is signalled after a committed sale so stock levels are re-read.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CoordinatorParams wires the coordinator collaborators.
type CoordinatorParams struct {
	Submitter Submitter
	Refresher Refresher
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Coordinator turns a sale session into a committed sale.
type Coordinator struct {
	submitter Submitter
	refresher Refresher
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Submitter == nil {
		return nil, fmt.Errorf("sale submitter required")
	}
	if params.Refresher == nil {
		return nil, fmt.Errorf("catalog refresher required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Coordinator{
		submitter: params.Submitter,
		refresher: params.Refresher,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       params.Now,
		inflight:  map[string]struct{}{},
	}, nil
}

// InProgress reports whether a checkout for sessionID is waiting on the sale
// service. Callers must not mutate the session while it is true.
func (c *Coordinator) InProgress(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[sessionID]
	return ok
}

// Checkout submits the session's cart as one sale. On success the session is
// reset and the catalog refreshed once; on failure the session is untouched.
// Neither call is cancelled with ctx; deadlines belong to the transport.
func (c *Coordinator) Checkout(ctx context.Context, session *cart.Session) (*SaleConfirmation, error) {
	if session == nil || session.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	if session.Cart.IsEmpty() {
		return nil, errEmptyCart()
	}
	if !c.begin(session.ID) {
		return nil, errInProgress(session.ID)
	}
	defer c.end(session.ID)

	req, err := BuildSaleRequest(session)
	if err != nil {
		return nil, err
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"session_id":     session.ID,
		"payment_method": string(req.PaymentMethod),
		"lines":          len(req.Details),
		"total":          req.Total.String(),
	})
	c.metrics.IncAttempt(string(req.PaymentMethod))

	detached := context.WithoutCancel(ctx)
	start := c.now()
	confirmation, err := c.submitter.SubmitSale(detached, req)
	c.metrics.ObserveSubmit(c.now().Sub(start))
	if err == nil && confirmation == nil {
		err = NewNetworkError("sale service returned no confirmation", nil)
	}
	if err != nil {
		failed := checkoutFailed(err)
		reason, _ := FailureReasonOf(failed)
		c.metrics.IncFailure(string(reason))
		c.logg.Warn(c.logg.WithField(ctx, "reason", string(reason)), "checkout.failed")
		return nil, failed
	}

	if confirmation.Total.IsZero() {
		confirmation.Total = req.Total
	}
	if confirmation.CreatedAt.IsZero() {
		confirmation.CreatedAt = c.now()
	}

	session.Reset(c.now())
	c.metrics.IncSuccess()
	c.logg.Info(c.logg.WithSaleID(ctx, confirmation.SaleID), "checkout.committed")

	if err := c.refresher.Refresh(detached); err != nil {
		c.logg.Error(ctx, "catalog refresh after checkout failed", err)
	}
	return confirmation, nil
}

func (c *Coordinator) begin(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return false
	}
	c.inflight[sessionID] = struct{}{}
	return true
}

func (c *Coordinator) end(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}
