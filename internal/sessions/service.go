package sessions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/internal/checkout"
	"github.com/angelmondragon/fruteria-pos/internal/receipts"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductLookup resolves catalog products for new cart lines.
type ProductLookup interface {
	Lookup(id string) (catalog.Product, bool)
}

// CheckoutRunner commits a session's cart as one sale.
type CheckoutRunner interface {
	Checkout(ctx context.Context, session *cart.Session) (*checkout.SaleConfirmation, error)
	InProgress(sessionID string) bool
}

// ReceiptRecorder journals committed sales.
type ReceiptRecorder interface {
	Create(ctx context.Context, receipt receipts.Receipt) (receipts.Receipt, error)
}

// DetailsInput carries optional session detail updates. Nil fields are left alone.
type DetailsInput struct {
	Customer      *cart.Customer
	PaymentMethod *enums.PaymentMethod
}

// CheckoutResult is returned for a committed sale.
type CheckoutResult struct {
	Confirmation checkout.SaleConfirmation
	Receipt      *receipts.Receipt
	Session      *cart.Session
	// SessionStale is set when the cleared cart could be neither saved nor
	// removed; the store may still hold the sold lines and the till must
	// open a new session instead of retrying.
	SessionStale bool
}

// ServiceParams groups dependencies for the session service.
type ServiceParams struct {
	Store    Store
	Catalog  ProductLookup
	Checkout CheckoutRunner
	Receipts ReceiptRecorder
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service exposes the sale session operations used by the tills.
type Service interface {
	Open(ctx context.Context) (*cart.Session, error)
	Get(ctx context.Context, id string) (*cart.Session, error)
	Cancel(ctx context.Context, id string) error
	AddLine(ctx context.Context, id, productID string, qty decimal.Decimal) (*cart.Session, error)
	UpdateLine(ctx context.Context, id, productID string, qty decimal.Decimal) (*cart.Session, error)
	RemoveLine(ctx context.Context, id, productID string) (*cart.Session, error)
	UpdateDetails(ctx context.Context, id string, input DetailsInput) (*cart.Session, error)
	Checkout(ctx context.Context, id string) (*CheckoutResult, error)
	InProgress(id string) bool
}

type service struct {
	store    Store
	catalog  ProductLookup
	checkout CheckoutRunner
	receipts ReceiptRecorder
	logg     *logger.Logger
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
	// pending marks checkouts accepted by this service; epochs counts them so a
	// mutation queued behind a checkout can tell the cart changed under it.
	pending map[string]struct{}
	epochs  map[string]uint64
}

// NewService builds the session service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session store is required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog view is required")
	}
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout coordinator is required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		store:    params.Store,
		catalog:  params.Catalog,
		checkout: params.Checkout,
		receipts: params.Receipts,
		logg:     params.Logger,
		now:      params.Now,
		locks:    map[string]*sync.Mutex{},
		pending:  map[string]struct{}{},
		epochs:   map[string]uint64{},
	}, nil
}

func (s *service) Open(ctx context.Context) (*cart.Session, error) {
	session := cart.NewSession(uuid.NewString(), s.now().UTC())
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithSessionID(ctx, session.ID), "session.opened")
	return session, nil
}

func (s *service) Get(ctx context.Context, id string) (*cart.Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Cancel abandons the sale: the cart is cleared and the session removed.
func (s *service) Cancel(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(session *cart.Session) error {
		session.Reset(s.now().UTC())
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithSessionID(ctx, id), "session.cancelled")
	return nil
}

func (s *service) AddLine(ctx context.Context, id, productID string, qty decimal.Decimal) (*cart.Session, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, id, func(session *cart.Session) error {
		product, ok := s.catalog.Lookup(productID)
		if !ok || !product.Sellable() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not available").
				WithDetails(map[string]any{"product_id": productID})
		}
		return session.Cart.AddProduct(product, qty)
	})
}

func (s *service) UpdateLine(ctx context.Context, id, productID string, qty decimal.Decimal) (*cart.Session, error) {
	return s.mutate(ctx, id, func(session *cart.Session) error {
		return session.Cart.UpdateQuantity(strings.TrimSpace(productID), qty)
	})
}

func (s *service) RemoveLine(ctx context.Context, id, productID string) (*cart.Session, error) {
	return s.mutate(ctx, id, func(session *cart.Session) error {
		session.Cart.RemoveLine(strings.TrimSpace(productID))
		return nil
	})
}

func (s *service) UpdateDetails(ctx context.Context, id string, input DetailsInput) (*cart.Session, error) {
	return s.mutate(ctx, id, func(session *cart.Session) error {
		if input.PaymentMethod != nil {
			if err := session.SetPaymentMethod(*input.PaymentMethod); err != nil {
				return err
			}
		}
		if input.Customer != nil {
			session.Customer = input.Customer.Normalize()
		}
		return nil
	})
}

// Checkout submits the session's cart. The cleared session is saved on success
// and the sale journaled; a journal failure is logged only. When the cleared
// session cannot be saved it is deleted, so a retry cannot resubmit the sale.
func (s *service) Checkout(ctx context.Context, id string) (*CheckoutResult, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if s.checkout.InProgress(id) || !s.beginCheckout(id) {
		return nil, errCheckoutInProgress(id)
	}
	defer s.endCheckout(id)
	unlock := s.lock(id)
	defer unlock()

	ctx = s.logg.WithSessionID(ctx, id)
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	snapshot := receipts.Snapshot(session)
	confirmation, err := s.checkout.Checkout(ctx, session)
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{Confirmation: *confirmation, Session: session}
	persistCtx := s.logg.WithSaleID(context.WithoutCancel(ctx), confirmation.SaleID)
	if err := s.store.Save(persistCtx, session); err != nil {
		s.logg.Error(persistCtx, "saving session after checkout failed", err)
		if delErr := s.store.Delete(persistCtx, id); delErr != nil {
			s.logg.Error(persistCtx, "removing sold session failed", delErr)
			result.SessionStale = true
		} else {
			s.logg.Warn(persistCtx, "session.removed_after_checkout")
		}
	}
	if s.receipts != nil {
		receipt, err := s.receipts.Create(persistCtx, receipts.FromSale(snapshot, *confirmation))
		if err != nil {
			s.logg.Error(persistCtx, "recording receipt failed", err)
		} else {
			result.Receipt = &receipt
		}
	}
	return result, nil
}

// InProgress reports whether a checkout for id has been accepted and not yet
// finished.
func (s *service) InProgress(id string) bool {
	if busy, _ := s.checkoutState(id); busy {
		return true
	}
	return s.checkout.InProgress(id)
}

func (s *service) mutate(ctx context.Context, id string, fn func(*cart.Session) error) (*cart.Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	busy, epoch := s.checkoutState(id)
	if busy || s.checkout.InProgress(id) {
		return nil, errCheckoutInProgress(id)
	}
	unlock := s.lock(id)
	defer unlock()

	// a checkout that took the lock first has sold the cart this change was meant for
	if busy, current := s.checkoutState(id); busy || current != epoch {
		return nil, errCheckoutInProgress(id)
	}

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	session.Touch(s.now().UTC())
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) beginCheckout(id string) bool {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if _, busy := s.pending[id]; busy {
		return false
	}
	s.pending[id] = struct{}{}
	s.epochs[id]++
	return true
}

func (s *service) endCheckout(id string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.pending, id)
}

func (s *service) checkoutState(id string) (bool, uint64) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	_, busy := s.pending[id]
	return busy, s.epochs[id]
}

// lock serialises load/mutate/save for one session within this process.
func (s *service) lock(id string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return nil
}

func errCheckoutInProgress(id string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout in progress").
		WithDetails(map[string]any{"session_id": id})
}
