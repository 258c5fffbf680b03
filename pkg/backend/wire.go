package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/internal/sales"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	"github.com/shopspring/decimal"
)

// flexID accepts ids encoded as JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// flexTime accepts RFC 3339 and the common zone-less layouts, read as UTC.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil || strings.TrimSpace(raw) == "" {
		*t = flexTime(time.Time{})
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			*t = flexTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

type productDTO struct {
	ID            flexID          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	UnitOfMeasure string          `json:"unitOfMeasure"`
	CurrentStock  decimal.Decimal `json:"currentStock"`
	Active        *bool           `json:"active"`
}

func (p productDTO) toProduct() catalog.Product {
	unit, err := enums.ParseUnitOfMeasure(strings.ToLower(strings.TrimSpace(p.UnitOfMeasure)))
	if err != nil {
		unit = enums.UnitOfMeasureUnit
	}
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	stock := p.CurrentStock
	if stock.IsNegative() {
		stock = decimal.Zero
	}
	return catalog.Product{
		ID:            string(p.ID),
		Name:          strings.TrimSpace(p.Name),
		Category:      strings.TrimSpace(p.Category),
		UnitPrice:     p.UnitPrice,
		UnitOfMeasure: unit,
		CurrentStock:  stock,
		Active:        active,
	}
}

type saleDetailDTO struct {
	ProductID   flexID          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type saleDTO struct {
	ID            flexID          `json:"id"`
	SaleID        flexID          `json:"saleId"`
	CustomerName  string          `json:"customerName"`
	CustomerPhone string          `json:"customerPhone"`
	CustomerEmail string          `json:"customerEmail"`
	PaymentMethod string          `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     flexTime        `json:"createdAt"`
	Details       []saleDetailDTO `json:"details"`
}

func (s saleDTO) id() string {
	if s.SaleID != "" {
		return string(s.SaleID)
	}
	return string(s.ID)
}

func (s saleDTO) toSale() sales.Sale {
	sale := sales.Sale{
		ID:            s.id(),
		CustomerName:  s.CustomerName,
		CustomerPhone: s.CustomerPhone,
		CustomerEmail: s.CustomerEmail,
		PaymentMethod: enums.PaymentMethod(strings.ToLower(strings.TrimSpace(s.PaymentMethod))),
		Total:         s.Total,
		CreatedAt:     time.Time(s.CreatedAt),
	}
	for _, detail := range s.Details {
		subtotal := detail.Subtotal
		if subtotal.IsZero() {
			subtotal = detail.UnitPrice.Mul(detail.Quantity)
		}
		sale.Details = append(sale.Details, sales.SaleLine{
			ProductID:   string(detail.ProductID),
			ProductName: detail.ProductName,
			Quantity:    detail.Quantity,
			UnitPrice:   detail.UnitPrice,
			Subtotal:    subtotal,
		})
	}
	return sale
}
