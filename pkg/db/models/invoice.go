package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// Invoice bills a delivered order. At most one invoice exists per order.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	ClientID      uuid.UUID           `gorm:"column:client_id;type:uuid;not null"`
	Status        enums.InvoiceStatus `gorm:"column:status;not null;default:'draft'"`
	IssueDate     time.Time           `gorm:"column:issue_date;not null"`
	DueDate       time.Time           `gorm:"column:due_date;not null"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	TaxRate       decimal.Decimal     `gorm:"column:tax_rate;type:numeric(4,2);not null;default:20.00"`
	TaxAmount     decimal.Decimal     `gorm:"column:tax_amount;type:numeric(10,2);not null"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Notes         *string             `gorm:"column:notes"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
