package cart

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/shopspring/decimal"
)

// Cart owns the lines of one in-progress sale. Lines keep insertion order and
// there is at most one line per product. Every failed mutation leaves the cart
// exactly as it was.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Restore rebuilds a cart from persisted lines, re-checking every invariant.
func Restore(lines []Line) (*Cart, error) {
	c := New()
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if err := line.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate line for product %s", line.ProductID))
		}
		seen[line.ProductID] = struct{}{}
		c.lines = append(c.lines, line)
	}
	return c, nil
}

// AddProduct appends a line for product or grows the existing one in place.
// Both the requested and the combined quantity must fit the product's stock.
func (c *Cart) AddProduct(product catalog.Product, qty decimal.Decimal) error {
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !qty.IsPositive() {
		return invalidQuantity(productID, qty)
	}
	if qty.GreaterThan(product.CurrentStock) {
		return insufficientStock(productID, qty, product.CurrentStock)
	}

	idx := c.indexOf(productID)
	if idx < 0 {
		line, err := NewLine(product, qty)
		if err != nil {
			return err
		}
		c.lines = append(c.lines, line)
		return nil
	}

	combined := c.lines[idx].Quantity.Add(qty)
	if combined.GreaterThan(product.CurrentStock) {
		return insufficientStock(productID, combined, product.CurrentStock)
	}
	c.lines[idx].Quantity = combined
	c.lines[idx].StockCeiling = product.CurrentStock
	return nil
}

// UpdateQuantity sets a line's quantity. Zero or negative removes the line.
func (c *Cart) UpdateQuantity(productID string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		c.RemoveLine(productID)
		return nil
	}

	idx := c.indexOf(productID)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	if qty.GreaterThan(c.lines[idx].StockCeiling) {
		return insufficientStock(productID, qty, c.lines[idx].StockCeiling)
	}
	c.lines[idx].Quantity = qty
	return nil
}

// RemoveLine drops the line for productID; absent lines are ignored.
func (c *Cart) RemoveLine(productID string) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
}

// Total is the sum of every line subtotal, computed on each call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID.
func (c *Cart) Line(productID string) (Line, bool) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return Line{}, false
	}
	return c.lines[idx], true
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}
