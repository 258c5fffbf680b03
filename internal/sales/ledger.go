package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/shopspring/decimal"
)

// SaleLine is one detail row of a committed sale.
type SaleLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Sale is a committed sale as reported by the backend.
type Sale struct {
	ID            string              `json:"id"`
	CustomerName  string              `json:"customerName"`
	CustomerPhone string              `json:"customerPhone,omitempty"`
	CustomerEmail string              `json:"customerEmail,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Total         decimal.Decimal     `json:"total"`
	CreatedAt     time.Time           `json:"createdAt"`
	Details       []SaleLine          `json:"details,omitempty"`
}

// Source lists committed sales.
type Source interface {
	ListSales(ctx context.Context) ([]Sale, error)
}

// Ledger is the read-only history of committed sales.
type Ledger struct {
	source Source
}

func NewLedger(source Source) (*Ledger, error) {
	if source == nil {
		return nil, fmt.Errorf("sales source required")
	}
	return &Ledger{source: source}, nil
}

// ListSales returns sales in the order the backend sent them.
func (l *Ledger) ListSales(ctx context.Context) ([]Sale, error) {
	sales, err := l.source.ListSales(ctx)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales")
	}
	if sales == nil {
		sales = []Sale{}
	}
	return sales, nil
}
