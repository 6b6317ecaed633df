package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// Quote is a commercial proposal that can later convert into an order.
type Quote struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	QuoteNumber  string            `gorm:"column:quote_number;not null;uniqueIndex"`
	CustomerID   uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	CustomerName string            `gorm:"column:customer_name;not null"`
	ValidUntil   time.Time         `gorm:"column:valid_until;not null"`
	Status       enums.QuoteStatus `gorm:"column:status;not null;default:'draft'"`
	Subtotal     decimal.Decimal   `gorm:"column:subtotal;type:numeric(10,2);not null;default:0"`
	Discount     decimal.Decimal   `gorm:"column:discount;type:numeric(10,2);not null;default:0"`
	Tax          decimal.Decimal   `gorm:"column:tax;type:numeric(10,2);not null;default:0"`
	Total        decimal.Decimal   `gorm:"column:total;type:numeric(10,2);not null;default:0"`
	Notes        *string           `gorm:"column:notes"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []QuoteItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
}
