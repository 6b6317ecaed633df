package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// Payment settles part or all of an invoice.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID     uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentDate   time.Time           `gorm:"column:payment_date;not null"`
	TransactionID *string             `gorm:"column:transaction_id"`
	Notes         *string             `gorm:"column:notes"`
	CreatedBy     uuid.UUID           `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
