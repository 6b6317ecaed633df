package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// DeliveryStatusUpdate is an append-only tracking event for an order.
type DeliveryStatusUpdate struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;not null"`
	Location  *string           `gorm:"column:location"`
	Notes     *string           `gorm:"column:notes"`
	UpdatedBy uuid.UUID         `gorm:"column:updated_by;type:uuid;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
