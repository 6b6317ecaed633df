package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteItem snapshots product name and pricing at quotation time.
type QuoteItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	QuoteID     uuid.UUID       `gorm:"column:quote_id;type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Discount    decimal.Decimal `gorm:"column:discount;type:numeric(10,2);not null;default:0"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(10,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
