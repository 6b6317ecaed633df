package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// Order is the client order aggregate root.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	ClientID        uuid.UUID         `gorm:"column:client_id;type:uuid;not null"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null;default:0"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	DeliveryNotes   *string           `gorm:"column:delivery_notes"`
	DeliveryDate    *time.Time        `gorm:"column:delivery_date"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}
