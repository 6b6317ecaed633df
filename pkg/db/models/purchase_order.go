package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// PurchaseOrder restocks products from a supplier.
type PurchaseOrder struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber          string                    `gorm:"column:order_number;not null;uniqueIndex"`
	SupplierID           uuid.UUID                 `gorm:"column:supplier_id;type:uuid;not null"`
	Status               enums.PurchaseOrderStatus `gorm:"column:status;not null;default:'draft'"`
	ExpectedDeliveryDate time.Time                 `gorm:"column:expected_delivery_date;not null"`
	Notes                *string                   `gorm:"column:notes"`
	CreatedBy            uuid.UUID                 `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`

	Items []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
}
