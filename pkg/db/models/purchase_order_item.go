package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderItem is one product line on a purchase order.
type PurchaseOrderItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	TotalPrice      decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null"`
}
