package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// StockMovement is the signed audit trail of every stock change.
// Quantity is negative for outgoing stock.
type StockMovement struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	MovementType    enums.MovementType `gorm:"column:movement_type;not null"`
	Quantity        int                `gorm:"column:quantity;not null"`
	ReferenceNumber *string            `gorm:"column:reference_number"`
	Notes           *string            `gorm:"column:notes"`
	PerformedBy     uuid.UUID          `gorm:"column:performed_by;type:uuid;not null"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
}
