package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/internal/sequence"
	"github.com/panelcraft/panelcraft-backend/pkg/config"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type numberGenerator interface {
	Next(ctx context.Context, tx *gorm.DB, prefix sequence.Prefix) (string, error)
}

// Service defines invoice, payment and credit note operations.
type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, filter ListInvoicesFilter) ([]models.Invoice, error)
	MarkOverdue(ctx context.Context) (int64, error)

	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, *models.Invoice, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
	TotalPaid(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)

	IssueCreditNote(ctx context.Context, input IssueCreditNoteInput) (*models.CreditNote, error)
	ListCreditNotes(ctx context.Context, invoiceID uuid.UUID) ([]models.CreditNote, error)
}

type service struct {
	repo Repository
	tx   txRunner
	seq  numberGenerator
	cfg  config.BillingConfig
}

// NewService builds a billing service with the required dependencies.
func NewService(repo Repository, tx txRunner, seq numberGenerator, cfg config.BillingConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if seq == nil {
		return nil, fmt.Errorf("number generator required")
	}
	if cfg.TaxRatePercent < 0 {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	if cfg.PaymentDueDays <= 0 {
		return nil, fmt.Errorf("payment due days must be positive")
	}
	return &service{repo: repo, tx: tx, seq: seq, cfg: cfg}, nil
}

// RecordPaymentInput registers money received against an invoice.
type RecordPaymentInput struct {
	InvoiceID     uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod enums.PaymentMethod
	PaymentDate   *time.Time
	TransactionID *string
	Notes         *string
	ActorID       uuid.UUID
}

// IssueCreditNoteInput credits an amount against an invoice.
type IssueCreditNoteInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Reason    string
	ActorID   uuid.UUID
}

// CreateForOrder issues the invoice for a delivered order. It runs inside the
// caller's transaction so the order status change and the invoice commit
// together. Each order may carry at most one invoice.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error) {
	repo := s.repo.WithTx(tx)

	if _, err := repo.FindInvoiceByOrderID(ctx, order.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice already exists for order").WithDetails(map[string]string{
			"order_number": order.OrderNumber,
		})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing invoice")
	}

	number, err := s.seq.Next(ctx, tx, sequence.PrefixInvoice)
	if err != nil {
		return nil, err
	}

	taxRate := decimal.NewFromInt(int64(s.cfg.TaxRatePercent))
	subtotal := order.TotalAmount
	taxAmount := subtotal.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)
	issueDate := time.Now()
	notes := fmt.Sprintf("Automatically generated for delivered order %s", order.OrderNumber)

	invoice := &models.Invoice{
		InvoiceNumber: number,
		OrderID:       order.ID,
		ClientID:      order.ClientID,
		Status:        enums.InvoiceStatusPending,
		IssueDate:     issueDate,
		DueDate:       issueDate.AddDate(0, 0, s.cfg.PaymentDueDays),
		Subtotal:      subtotal,
		TaxRate:       taxRate,
		TaxAmount:     taxAmount,
		TotalAmount:   subtotal.Add(taxAmount),
		Notes:         &notes,
	}
	if err := repo.CreateInvoice(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	return invoice, nil
}

func (s *service) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, id)
	if err != nil {
		return nil, invoiceNotFoundOr(err)
	}
	return invoice, nil
}

func (s *service) ListInvoices(ctx context.Context, filter ListInvoicesFilter) ([]models.Invoice, error) {
	invoices, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return invoices, nil
}

// MarkOverdue flips pending and partially paid invoices past their due date
// to overdue, and reports how many were affected.
func (s *service) MarkOverdue(ctx context.Context) (int64, error) {
	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).MarkOverdueInvoices(ctx, time.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark overdue invoices")
		}
		affected = n
		return nil
	})
	return affected, err
}

func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, *models.Invoice, error) {
	if !input.Amount.IsPositive() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var (
		payment *models.Payment
		invoice *models.Invoice
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.LockInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return invoiceNotFoundOr(err)
		}
		if locked.Status == enums.InvoiceStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is cancelled")
		}

		paymentDate := time.Now()
		if input.PaymentDate != nil {
			paymentDate = *input.PaymentDate
		}
		payment = &models.Payment{
			InvoiceID:     locked.ID,
			Amount:        input.Amount,
			PaymentMethod: input.PaymentMethod,
			PaymentDate:   paymentDate,
			TransactionID: input.TransactionID,
			Notes:         input.Notes,
			CreatedBy:     input.ActorID,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		totalPaid, err := repo.SumPaymentsByInvoice(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payments")
		}

		if next := settledStatus(locked.Status, locked.TotalAmount, totalPaid); next != locked.Status {
			if err := repo.UpdateInvoiceStatus(ctx, locked.ID, next); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
			}
			locked.Status = next
		}
		invoice = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, invoice, nil
}

func (s *service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	if _, err := s.repo.FindInvoiceByID(ctx, invoiceID); err != nil {
		return nil, invoiceNotFoundOr(err)
	}
	payments, err := s.repo.ListPaymentsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

func (s *service) TotalPaid(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.repo.FindInvoiceByID(ctx, invoiceID); err != nil {
		return decimal.Zero, invoiceNotFoundOr(err)
	}
	total, err := s.repo.SumPaymentsByInvoice(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payments")
	}
	return total, nil
}

// IssueCreditNote records a credit against an invoice. Credit notes do not
// change the invoice status or total. Settlement only tracks payments.
func (s *service) IssueCreditNote(ctx context.Context, input IssueCreditNoteInput) (*models.CreditNote, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit note amount must be positive")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit note reason is required")
	}

	var note *models.CreditNote
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := repo.LockInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return invoiceNotFoundOr(err)
		}

		number, err := s.seq.Next(ctx, tx, sequence.PrefixCreditNote)
		if err != nil {
			return err
		}

		note = &models.CreditNote{
			CreditNoteNumber: number,
			InvoiceID:        invoice.ID,
			Amount:           input.Amount,
			Reason:           input.Reason,
			IssueDate:        time.Now(),
			CreatedBy:        input.ActorID,
		}
		if err := repo.CreateCreditNote(ctx, note); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create credit note")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *service) ListCreditNotes(ctx context.Context, invoiceID uuid.UUID) ([]models.CreditNote, error) {
	if _, err := s.repo.FindInvoiceByID(ctx, invoiceID); err != nil {
		return nil, invoiceNotFoundOr(err)
	}
	notes, err := s.repo.ListCreditNotesByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit notes")
	}
	return notes, nil
}

// settledStatus recomputes an invoice status from the paid total.
func settledStatus(current enums.InvoiceStatus, total, paid decimal.Decimal) enums.InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return enums.InvoiceStatusPaid
	case paid.IsPositive():
		return enums.InvoiceStatusPartiallyPaid
	default:
		return current
	}
}

func invoiceNotFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
}
