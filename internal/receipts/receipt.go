package receipts

import (
	"strings"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	"github.com/angelmondragon/fruteria-pos/internal/checkout"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one printed row of a receipt.
type Line struct {
	ProductID     string              `json:"productId"`
	Name          string              `json:"name"`
	Quantity      decimal.Decimal     `json:"quantity"`
	UnitOfMeasure enums.UnitOfMeasure `json:"unitOfMeasure"`
	UnitPrice     decimal.Decimal     `json:"unitPrice"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
}

// Receipt is a committed sale kept for reprints.
type Receipt struct {
	ID            uuid.UUID           `json:"id"`
	SaleID        string              `json:"saleId"`
	SessionID     string              `json:"sessionId"`
	CustomerName  string              `json:"customerName"`
	CustomerPhone *string             `json:"customerPhone,omitempty"`
	CustomerEmail *string             `json:"customerEmail,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Total         decimal.Decimal     `json:"total"`
	Lines         []Line              `json:"lines"`
	CommittedAt   time.Time           `json:"committedAt"`
}

// SaleSnapshot is the session state captured right before checkout, since a
// successful checkout clears the session.
type SaleSnapshot struct {
	SessionID     string
	Customer      cart.Customer
	PaymentMethod enums.PaymentMethod
	Lines         []cart.Line
}

// Snapshot captures what a receipt needs from the session.
func Snapshot(session *cart.Session) SaleSnapshot {
	return SaleSnapshot{
		SessionID:     session.ID,
		Customer:      session.Customer.Normalize(),
		PaymentMethod: session.PaymentMethod,
		Lines:         session.Cart.Lines(),
	}
}

// FromSale builds the receipt for a confirmed sale.
func FromSale(snapshot SaleSnapshot, confirmation checkout.SaleConfirmation) Receipt {
	name := snapshot.Customer.Name
	if name == "" {
		name = checkout.DefaultCustomerName
	}
	lines := make([]Line, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, Line{
			ProductID:     line.ProductID,
			Name:          line.Name,
			Quantity:      line.Quantity,
			UnitOfMeasure: line.UnitOfMeasure,
			UnitPrice:     line.UnitPrice,
			Subtotal:      line.Subtotal(),
		})
	}
	return Receipt{
		SaleID:        confirmation.SaleID,
		SessionID:     snapshot.SessionID,
		CustomerName:  name,
		CustomerPhone: optional(snapshot.Customer.Phone),
		CustomerEmail: optional(snapshot.Customer.Email),
		PaymentMethod: snapshot.PaymentMethod,
		Total:         confirmation.Total,
		Lines:         lines,
		CommittedAt:   confirmation.CreatedAt.UTC(),
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
