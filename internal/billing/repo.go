package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// ListInvoicesFilter narrows invoice listings.
type ListInvoicesFilter struct {
	ClientID *uuid.UUID
	Status   *enums.InvoiceStatus
	Limit    int
	Offset   int
}

// Repository is the persistence surface for invoices, payments and credit notes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	LockInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, filter ListInvoicesFilter) ([]models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status enums.InvoiceStatus) error
	MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int64, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
	SumPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)

	CreateCreditNote(ctx context.Context, note *models.CreditNote) error
	ListCreditNotesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.CreditNote, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a billing repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) LockInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListInvoices(ctx context.Context, filter ListInvoicesFilter) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var invoices []models.Invoice
	if err := query.Order("created_at DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status enums.InvoiceStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("status IN ?", []enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusPartiallyPaid}).
		Where("due_date < ?", asOf).
		Update("status", enums.InvoiceStatusOverdue)
	return result.RowsAffected, result.Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) SumPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("invoice_id = ?", invoiceID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) CreateCreditNote(ctx context.Context, note *models.CreditNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *repository) ListCreditNotesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.CreditNote, error) {
	var notes []models.CreditNote
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("issue_date ASC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}
