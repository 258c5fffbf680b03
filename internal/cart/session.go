package cart

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/shopspring/decimal"
)

// Customer is the optional buyer information attached to a sale.
type Customer struct {
	Name  string
	Phone string
	Email string
}

// Normalize trims every field.
func (c Customer) Normalize() Customer {
	return Customer{
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
		Email: strings.TrimSpace(c.Email),
	}
}

// Session is the in-progress sale owned by one till. It is reset to empty on a
// successful checkout or an explicit cancel.
type Session struct {
	ID            string
	Cart          *Cart
	Customer      Customer
	PaymentMethod enums.PaymentMethod
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSession starts an empty sale paid in cash.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		Cart:          New(),
		PaymentMethod: enums.PaymentMethodCash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetPaymentMethod switches the tender type.
func (s *Session) SetPaymentMethod(method enums.PaymentMethod) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": string(method)})
	}
	s.PaymentMethod = method
	return nil
}

// Reset empties the cart and forgets the customer.
func (s *Session) Reset(now time.Time) {
	s.Cart.Clear()
	s.Customer = Customer{}
	s.PaymentMethod = enums.PaymentMethodCash
	s.UpdatedAt = now
}

// Touch records a mutation time.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

type lineRecord struct {
	ProductID     string              `json:"productId"`
	Name          string              `json:"name"`
	UnitPrice     decimal.Decimal     `json:"unitPrice"`
	Quantity      decimal.Decimal     `json:"quantity"`
	StockCeiling  decimal.Decimal     `json:"stockCeiling"`
	UnitOfMeasure enums.UnitOfMeasure `json:"unitOfMeasure"`
}

type customerRecord struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type sessionRecord struct {
	ID            string              `json:"id"`
	Lines         []lineRecord        `json:"lines"`
	Customer      customerRecord      `json:"customer"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// MarshalJSON encodes the session for the session stores.
func (s *Session) MarshalJSON() ([]byte, error) {
	rec := sessionRecord{
		ID:            s.ID,
		Customer:      customerRecord(s.Customer),
		PaymentMethod: s.PaymentMethod,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	lines := []Line{}
	if s.Cart != nil {
		lines = s.Cart.Lines()
	}
	rec.Lines = make([]lineRecord, 0, len(lines))
	for _, line := range lines {
		rec.Lines = append(rec.Lines, lineRecord(line))
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a stored session and rejects payloads that break cart invariants.
func (s *Session) UnmarshalJSON(data []byte) error {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	lines := make([]Line, 0, len(rec.Lines))
	for _, line := range rec.Lines {
		lines = append(lines, Line(line))
	}
	restored, err := Restore(lines)
	if err != nil {
		return err
	}
	method := rec.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCash
	}
	*s = Session{
		ID:            rec.ID,
		Cart:          restored,
		Customer:      Customer(rec.Customer),
		PaymentMethod: method,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	return nil
}
