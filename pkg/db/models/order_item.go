package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem snapshots product price and quantity at order time.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
