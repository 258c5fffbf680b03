package checkout

import (
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultCustomerName is sent when the cashier leaves the customer blank.
const DefaultCustomerName = "Cliente General"

// SaleDetail is one line of a sale request.
type SaleDetail struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SaleRequest is the payload submitted to the sale service. Subtotal must equal
// Quantity*UnitPrice for every detail and Total the sum of subtotals.
type SaleRequest struct {
	CustomerName  string              `json:"customerName"`
	CustomerPhone *string             `json:"customerPhone,omitempty"`
	CustomerEmail *string             `json:"customerEmail,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Total         decimal.Decimal     `json:"total"`
	Details       []SaleDetail        `json:"details"`
}

// SaleConfirmation is what the sale service returns for a committed sale.
type SaleConfirmation struct {
	SaleID    string          `json:"saleId"`
	CreatedAt time.Time       `json:"createdAt"`
	Total     decimal.Decimal `json:"total"`
}

// ErrTotalDrift means the request total no longer matches the cart total. It is
// returned wrapped in a fresh CodeInternal error carrying both totals.
var ErrTotalDrift = errors.New("sale total does not match cart total")

// BuildSaleRequest assembles the request for session's current cart.
func BuildSaleRequest(session *cart.Session) (SaleRequest, error) {
	if session == nil || session.Cart == nil {
		return SaleRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	return assembleSaleRequest(session.Customer, session.PaymentMethod, session.Cart.Lines(), session.Cart.Total())
}

func assembleSaleRequest(customer cart.Customer, method enums.PaymentMethod, lines []cart.Line, cartTotal decimal.Decimal) (SaleRequest, error) {
	if !method.IsValid() {
		return SaleRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	customer = customer.Normalize()

	req := SaleRequest{
		CustomerName:  customer.Name,
		CustomerPhone: optional(customer.Phone),
		CustomerEmail: optional(customer.Email),
		PaymentMethod: method,
		Total:         decimal.Zero,
		Details:       make([]SaleDetail, 0, len(lines)),
	}
	if req.CustomerName == "" {
		req.CustomerName = DefaultCustomerName
	}

	for _, line := range lines {
		subtotal := line.UnitPrice.Mul(line.Quantity)
		req.Details = append(req.Details, SaleDetail{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  subtotal,
		})
		req.Total = req.Total.Add(subtotal)
	}

	if !req.Total.Equal(cartTotal) {
		return SaleRequest{}, pkgerrors.Wrap(pkgerrors.CodeInternal, ErrTotalDrift, ErrTotalDrift.Error()).
			WithDetails(map[string]any{
				"requestTotal": req.Total.String(),
				"cartTotal":    cartTotal.String(),
			})
	}
	return req, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
