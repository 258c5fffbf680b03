package controllers

import (
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	"github.com/angelmondragon/fruteria-pos/internal/checkout"
	"github.com/angelmondragon/fruteria-pos/internal/receipts"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	"github.com/shopspring/decimal"
)

type lineResponse struct {
	ProductID     string              `json:"productId"`
	Name          string              `json:"name"`
	UnitPrice     decimal.Decimal     `json:"unitPrice"`
	Quantity      decimal.Decimal     `json:"quantity"`
	UnitOfMeasure enums.UnitOfMeasure `json:"unitOfMeasure"`
	StockCeiling  decimal.Decimal     `json:"stockCeiling"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
}

type customerResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type sessionResponse struct {
	ID                 string              `json:"id"`
	Lines              []lineResponse      `json:"lines"`
	Total              decimal.Decimal     `json:"total"`
	Customer           customerResponse    `json:"customer"`
	PaymentMethod      enums.PaymentMethod `json:"paymentMethod"`
	CheckoutInProgress bool                `json:"checkoutInProgress"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

func newSessionResponse(session *cart.Session, inProgress bool) sessionResponse {
	lines := session.Cart.Lines()
	resp := sessionResponse{
		ID:                 session.ID,
		Lines:              make([]lineResponse, 0, len(lines)),
		Total:              session.Cart.Total(),
		Customer:           customerResponse(session.Customer),
		PaymentMethod:      session.PaymentMethod,
		CheckoutInProgress: inProgress,
		CreatedAt:          session.CreatedAt,
		UpdatedAt:          session.UpdatedAt,
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ProductID:     line.ProductID,
			Name:          line.Name,
			UnitPrice:     line.UnitPrice,
			Quantity:      line.Quantity,
			UnitOfMeasure: line.UnitOfMeasure,
			StockCeiling:  line.StockCeiling,
			Subtotal:      line.Subtotal(),
		})
	}
	return resp
}

type checkoutResponse struct {
	Sale    checkout.SaleConfirmation `json:"sale"`
	Receipt *receipts.Receipt         `json:"receipt,omitempty"`
	Session sessionResponse           `json:"session"`

	// SessionStale tells the till to open a new session; the old one may
	// still hold the sold lines.
	SessionStale bool `json:"sessionStale,omitempty"`
}

type addLineRequest struct {
	ProductID string          `json:"productId" validate:"required,max=64"`
	Quantity  decimal.Decimal `json:"quantity" validate:"decimal_gt0"`
}

type updateLineRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type customerPayload struct {
	Name  string `json:"name" validate:"max=120"`
	Phone string `json:"phone" validate:"max=40"`
	Email string `json:"email" validate:"omitempty,email,max=120"`
}

type updateDetailsRequest struct {
	Customer      *customerPayload `json:"customer"`
	PaymentMethod *string          `json:"paymentMethod" validate:"omitempty,payment_method"`
}

func (p customerPayload) toCustomer() cart.Customer {
	return cart.Customer{Name: p.Name, Phone: p.Phone, Email: p.Email}.Normalize()
}
