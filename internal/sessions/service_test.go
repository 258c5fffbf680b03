package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/internal/checkout"
	"github.com/angelmondragon/fruteria-pos/internal/receipts"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu       sync.Mutex
	products []catalog.Product
	calls    int
}

func (s *stubSource) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]catalog.Product(nil), s.products...), nil
}

type stubSubmitter struct {
	mu       sync.Mutex
	requests []checkout.SaleRequest
	err      error
	entered  chan struct{}
	release  chan struct{}
}

func (s *stubSubmitter) SubmitSale(ctx context.Context, req checkout.SaleRequest) (*checkout.SaleConfirmation, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.entered != nil {
		close(s.entered)
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.SaleConfirmation{
		SaleID:    "S-100",
		CreatedAt: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		Total:     req.Total,
	}, nil
}

type stubRecorder struct {
	mu       sync.Mutex
	receipts []receipts.Receipt
	err      error
}

func (r *stubRecorder) Create(ctx context.Context, receipt receipts.Receipt) (receipts.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return receipts.Receipt{}, r.err
	}
	r.receipts = append(r.receipts, receipt)
	return receipt, nil
}

// faultyStore fails writes on demand and can hold the next Get until released.
type faultyStore struct {
	*MemoryStore
	mu         sync.Mutex
	failSave   bool
	failDelete bool
	deletes    int
	getEntered chan struct{}
	getGate    chan struct{}
}

func (s *faultyStore) Get(ctx context.Context, id string) (*cart.Session, error) {
	s.mu.Lock()
	entered, gate := s.getEntered, s.getGate
	s.getEntered, s.getGate = nil, nil
	s.mu.Unlock()
	if entered != nil {
		close(entered)
		<-gate
	}
	return s.MemoryStore.Get(ctx, id)
}

func (s *faultyStore) Save(ctx context.Context, session *cart.Session) error {
	s.mu.Lock()
	fail := s.failSave
	s.mu.Unlock()
	if fail {
		return errors.New("redis: connection reset")
	}
	return s.MemoryStore.Save(ctx, session)
}

func (s *faultyStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.deletes++
	fail := s.failDelete
	s.mu.Unlock()
	if fail {
		return errors.New("redis: connection reset")
	}
	return s.MemoryStore.Delete(ctx, id)
}

func (s *faultyStore) set(fn func(*faultyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func newFaultyFixture(t *testing.T) (*fixture, *faultyStore) {
	t.Helper()
	var faulty *faultyStore
	f := newFixtureWithStore(t, func(mem *MemoryStore) Store {
		faulty = &faultyStore{MemoryStore: mem}
		return faulty
	})
	return f, faulty
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fixture struct {
	svc       Service
	store     *MemoryStore
	source    *stubSource
	submitter *stubSubmitter
	recorder  *stubRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore lets a test put a wrapper in front of the memory store.
func newFixtureWithStore(t *testing.T, wrap func(*MemoryStore) Store) *fixture {
	t.Helper()
	source := &stubSource{products: []catalog.Product{
		{ID: "A", Name: "Manzana", Category: "Fruta", UnitPrice: dec("10.50"), UnitOfMeasure: enums.UnitOfMeasureKg, CurrentStock: dec("5"), Active: true},
		{ID: "B", Name: "Fresas", Category: "Fruta", UnitPrice: dec("4.10"), UnitOfMeasure: enums.UnitOfMeasureBox, CurrentStock: dec("2"), Active: true},
		{ID: "C", Name: "Mango", Category: "Fruta", UnitPrice: dec("3"), UnitOfMeasure: enums.UnitOfMeasureUnit, CurrentStock: dec("8"), Active: false},
	}}
	view, err := catalog.NewView(source)
	require.NoError(t, err)
	require.NoError(t, view.Refresh(context.Background()))

	submitter := &stubSubmitter{}
	coordinator, err := checkout.NewCoordinator(checkout.CoordinatorParams{Submitter: submitter, Refresher: view})
	require.NoError(t, err)

	store := NewMemoryStore()
	var backing Store = store
	if wrap != nil {
		backing = wrap(store)
	}
	recorder := &stubRecorder{}
	svc, err := NewService(ServiceParams{
		Store:    backing,
		Catalog:  view,
		Checkout: coordinator,
		Receipts: recorder,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, source: source, submitter: submitter, recorder: recorder}
}

func (f *fixture) open(t *testing.T) string {
	t.Helper()
	session, err := f.svc.Open(context.Background())
	require.NoError(t, err)
	return session.ID
}

func TestOpenPersistsEmptySession(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	session, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, session.Cart.IsEmpty())
	assert.Equal(t, enums.PaymentMethodCash, session.PaymentMethod)
}

func TestAddLinePersistsAcrossRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)

	_, err := f.svc.AddLine(ctx, id, "A", dec("1.5"))
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, id, "B", dec("1"))
	require.NoError(t, err)

	session, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, session.Cart.Len())
	assert.True(t, session.Cart.Total().Equal(dec("19.85")))
}

func TestAddLineRejectsUnknownAndInactiveProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)

	_, err := f.svc.AddLine(ctx, id, "missing", dec("1"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddLine(ctx, id, "C", dec("1"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestAddLineOverStockLeavesStoredCartUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)

	_, err := f.svc.AddLine(ctx, id, "B", dec("2"))
	require.NoError(t, err)

	_, err = f.svc.AddLine(ctx, id, "B", dec("1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	session, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	line, ok := session.Cart.Line("B")
	require.True(t, ok)
	assert.True(t, line.Quantity.Equal(dec("2")))
}

func TestUpdateAndRemoveLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
	require.NoError(t, err)

	session, err := f.svc.UpdateLine(ctx, id, "A", dec("3"))
	require.NoError(t, err)
	assert.True(t, session.Cart.Total().Equal(dec("31.5")))

	_, err = f.svc.UpdateLine(ctx, id, "A", dec("6"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	session, err = f.svc.UpdateLine(ctx, id, "A", dec("0"))
	require.NoError(t, err)
	assert.True(t, session.Cart.IsEmpty())

	_, err = f.svc.AddLine(ctx, id, "B", dec("1"))
	require.NoError(t, err)
	session, err = f.svc.RemoveLine(ctx, id, "B")
	require.NoError(t, err)
	assert.True(t, session.Cart.IsEmpty())
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)

	card := enums.PaymentMethodCard
	session, err := f.svc.UpdateDetails(ctx, id, DetailsInput{
		Customer:      &cart.Customer{Name: " Ana ", Email: " ana@example.com "},
		PaymentMethod: &card,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", session.Customer.Name)
	assert.Equal(t, "ana@example.com", session.Customer.Email)
	assert.Equal(t, enums.PaymentMethodCard, session.PaymentMethod)

	bogus := enums.PaymentMethod("crypto")
	_, err = f.svc.UpdateDetails(ctx, id, DetailsInput{PaymentMethod: &bogus})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodCard, stored.PaymentMethod)
}

func TestCheckoutClearsStoredSessionAndRecordsReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1.5"))
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, id, "B", dec("1"))
	require.NoError(t, err)

	result, err := f.svc.Checkout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "S-100", result.Confirmation.SaleID)
	assert.True(t, result.Confirmation.Total.Equal(dec("19.85")))
	require.NotNil(t, result.Receipt)
	assert.Len(t, result.Receipt.Lines, 2)
	assert.Equal(t, checkout.DefaultCustomerName, result.Receipt.CustomerName)

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Cart.IsEmpty())
	assert.Equal(t, 2, f.source.calls)
	require.Len(t, f.recorder.receipts, 1)
}

func TestCheckoutReceiptFailureDoesNotFailSale(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("disk full")
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
	require.NoError(t, err)

	result, err := f.svc.Checkout(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, result.Receipt)
	assert.True(t, result.Session.Cart.IsEmpty())
}

func TestCheckoutFailureKeepsStoredCart(t *testing.T) {
	f := newFixture(t)
	f.submitter.err = checkout.NewRejectedError("stock changed")
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("2"))
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, id)
	require.Error(t, err)
	reason, ok := checkout.FailureReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, checkout.ReasonRejected, reason)

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Cart.Total().Equal(dec("21")))
	assert.Empty(t, f.recorder.receipts)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	_, err := f.svc.Checkout(context.Background(), id)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEmptyCart))
	assert.Empty(t, f.submitter.requests)
}

func TestMutationsRejectedWhileCheckoutInFlight(t *testing.T) {
	f := newFixture(t)
	f.submitter.entered = make(chan struct{})
	f.submitter.release = make(chan struct{})
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Checkout(ctx, id)
		done <- err
	}()
	<-f.submitter.entered

	_, err = f.svc.AddLine(ctx, id, "B", dec("1"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	err = f.svc.Cancel(ctx, id)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.Checkout(ctx, id)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	close(f.submitter.release)
	require.NoError(t, <-done)
	assert.Len(t, f.submitter.requests, 1)
}

func TestCheckoutSaveFailureRemovesSoldSession(t *testing.T) {
	f, store := newFaultyFixture(t)
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
	require.NoError(t, err)

	store.set(func(s *faultyStore) { s.failSave = true })
	result, err := f.svc.Checkout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "S-100", result.Confirmation.SaleID)
	assert.False(t, result.SessionStale)
	require.NotNil(t, result.Receipt)

	_, err = f.svc.Get(ctx, id)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	// a retry must not submit the sold cart a second time
	_, err = f.svc.Checkout(ctx, id)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.Len(t, f.submitter.requests, 1)
}

func TestCheckoutSaveAndDeleteFailureMarksSessionStale(t *testing.T) {
	f, store := newFaultyFixture(t)
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
	require.NoError(t, err)

	store.set(func(s *faultyStore) {
		s.failSave = true
		s.failDelete = true
	})
	result, err := f.svc.Checkout(ctx, id)
	require.NoError(t, err)
	assert.True(t, result.SessionStale)
	assert.True(t, result.Session.Cart.IsEmpty())
	assert.Equal(t, 1, store.deletes)
	assert.False(t, f.svc.InProgress(id))
}

func TestMutationQueuedBehindCheckoutIsRejected(t *testing.T) {
	f, store := newFaultyFixture(t)
	f.submitter.entered = make(chan struct{})
	f.submitter.release = make(chan struct{})
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
	require.NoError(t, err)

	// hold the session lock with a mutation parked inside the store
	getEntered, getGate := make(chan struct{}), make(chan struct{})
	store.set(func(s *faultyStore) {
		s.getEntered = getEntered
		s.getGate = getGate
	})
	firstDone := make(chan error, 1)
	go func() {
		_, err := f.svc.AddLine(ctx, id, "B", dec("1"))
		firstDone <- err
	}()
	<-getEntered

	lateDone := make(chan error, 1)
	go func() {
		_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
		lateDone <- err
	}()
	checkoutDone := make(chan error, 1)
	go func() {
		_, err := f.svc.Checkout(ctx, id)
		checkoutDone <- err
	}()
	require.Eventually(t, func() bool { return f.svc.InProgress(id) }, time.Second, 5*time.Millisecond)

	_, err = f.svc.UpdateLine(ctx, id, "A", dec("2"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	close(getGate)
	require.NoError(t, <-firstDone)
	<-f.submitter.entered
	time.Sleep(20 * time.Millisecond)
	close(f.submitter.release)
	require.NoError(t, <-checkoutDone)

	err = <-lateDone
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	require.Len(t, f.submitter.requests, 1)
	assert.Len(t, f.submitter.requests[0].Details, 2)
	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Cart.IsEmpty())
	assert.False(t, f.svc.InProgress(id))
}

func TestCancelDeletesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	_, err := f.svc.AddLine(ctx, id, "A", dec("1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, id))

	_, err = f.svc.Get(ctx, id)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestUnknownSessionAndBlankID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddLine(ctx, "nope", "A", dec("1"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, " ")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
