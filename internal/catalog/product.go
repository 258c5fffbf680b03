package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	"github.com/shopspring/decimal"
)

// Product is the catalog snapshot of one item the shop can sell.
type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	UnitPrice     decimal.Decimal     `json:"unitPrice"`
	UnitOfMeasure enums.UnitOfMeasure `json:"unitOfMeasure"`
	CurrentStock  decimal.Decimal     `json:"currentStock"`
	Active        bool                `json:"active"`
}

// Sellable reports whether the product may be offered at the till.
func (p Product) Sellable() bool {
	return p.Active && p.CurrentStock.IsPositive()
}

func (p Product) matches(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Category), term)
}

// Source loads the authoritative product list.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}
