package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fruteria-pos/pkg/enums"
)

// Receipt is the local journal row written after the backend commits a sale.
type Receipt struct {
	ID            uuid.UUID           `gorm:"column:id;type:varchar(36);primaryKey"`
	SaleID        string              `gorm:"column:sale_id;not null;uniqueIndex"`
	SessionID     string              `gorm:"column:session_id;not null;index"`
	CustomerName  string              `gorm:"column:customer_name;not null"`
	CustomerPhone *string             `gorm:"column:customer_phone"`
	CustomerEmail *string             `gorm:"column:customer_email"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric;not null"`
	Lines         string              `gorm:"column:lines;type:text;not null"`
	CommittedAt   time.Time           `gorm:"column:committed_at;not null;index"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name.
func (Receipt) TableName() string {
	return "receipts"
}
