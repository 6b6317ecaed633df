package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditNote records an amount credited against an invoice.
type CreditNote struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CreditNoteNumber string          `gorm:"column:credit_note_number;not null;uniqueIndex"`
	InvoiceID        uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	Reason           string          `gorm:"column:reason;not null"`
	IssueDate        time.Time       `gorm:"column:issue_date;not null"`
	CreatedBy        uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
