package cart

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/shopspring/decimal"
)

// Line is one aggregated entry per product in the in-progress sale. Name and
// UnitPrice are snapshots taken when the product was first added.
type Line struct {
	ProductID     string
	Name          string
	UnitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	StockCeiling  decimal.Decimal
	UnitOfMeasure enums.UnitOfMeasure
}

// NewLine snapshots product into a line holding qty.
func NewLine(product catalog.Product, qty decimal.Decimal) (Line, error) {
	line := Line{
		ProductID:     strings.TrimSpace(product.ID),
		Name:          product.Name,
		UnitPrice:     product.UnitPrice,
		Quantity:      qty,
		StockCeiling:  product.CurrentStock,
		UnitOfMeasure: product.UnitOfMeasure,
	}
	if err := line.validate(); err != nil {
		return Line{}, err
	}
	return line, nil
}

// Subtotal is UnitPrice * Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

func (l Line) validate() error {
	if l.ProductID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !l.Quantity.IsPositive() {
		return invalidQuantity(l.ProductID, l.Quantity)
	}
	if l.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative").
			WithDetails(map[string]any{"product_id": l.ProductID})
	}
	if l.Quantity.GreaterThan(l.StockCeiling) {
		return insufficientStock(l.ProductID, l.Quantity, l.StockCeiling)
	}
	return nil
}

func invalidQuantity(productID string, qty decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
		WithDetails(map[string]any{"product_id": productID, "quantity": qty.String()})
}

func insufficientStock(productID string, requested, available decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("requested %s but only %s in stock", requested, available)).
		WithDetails(map[string]any{
			"product_id": productID,
			"requested":  requested.String(),
			"available":  available.String(),
		})
}

// IsInsufficientStock reports whether err is a stock ceiling violation.
func IsInsufficientStock(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock)
}
