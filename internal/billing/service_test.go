package billing

import (
	"context"
	"testing"
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

type stubBillingRepo struct {
	invoiceByOrder map[uuid.UUID]*models.Invoice
	invoices       map[uuid.UUID]*models.Invoice
	payments       []models.Payment
	creditNotes    []models.CreditNote
	overdueCount   int64
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubBillingRepo) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if s.invoices == nil {
		s.invoices = make(map[uuid.UUID]*models.Invoice)
	}
	if s.invoiceByOrder == nil {
		s.invoiceByOrder = make(map[uuid.UUID]*models.Invoice)
	}
	s.invoices[invoice.ID] = invoice
	s.invoiceByOrder[invoice.OrderID] = invoice
	return nil
}

func (s *stubBillingRepo) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, ok := s.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return invoice, nil
}

func (s *stubBillingRepo) FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	invoice, ok := s.invoiceByOrder[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return invoice, nil
}

func (s *stubBillingRepo) LockInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.FindInvoiceByID(ctx, id)
}

func (s *stubBillingRepo) ListInvoices(ctx context.Context, filter ListInvoicesFilter) ([]models.Invoice, error) {
	out := make([]models.Invoice, 0, len(s.invoices))
	for _, invoice := range s.invoices {
		out = append(out, *invoice)
	}
	return out, nil
}

func (s *stubBillingRepo) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status enums.InvoiceStatus) error {
	invoice, ok := s.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	invoice.Status = status
	return nil
}

func (s *stubBillingRepo) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int64, error) {
	return s.overdueCount, nil
}

func (s *stubBillingRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.payments = append(s.payments, *payment)
	return nil
}

func (s *stubBillingRepo) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubBillingRepo) SumPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (s *stubBillingRepo) CreateCreditNote(ctx context.Context, note *models.CreditNote) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	s.creditNotes = append(s.creditNotes, *note)
	return nil
}

func (s *stubBillingRepo) ListCreditNotesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.CreditNote, error) {
	var out []models.CreditNote
	for _, n := range s.creditNotes {
		if n.InvoiceID == invoiceID {
			out = append(out, n)
		}
	}
	return out, nil
}

type stubNumberGenerator struct {
	counts map[string]int
}

func (s *stubNumberGenerator) Next(ctx context.Context, tx *gorm.DB, prefix sequence.Prefix) (string, error) {
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[prefix.Code]++
	return prefix.Format(int64(s.counts[prefix.Code])), nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{TaxRatePercent: 20, PaymentDueDays: 30}
}

func newTestBillingService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, &stubNumberGenerator{}, testBillingConfig())
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCreateForOrderComputesTaxAndDueDate(t *testing.T) {
	repo := &stubBillingRepo{}
	svc := newTestBillingService(t, repo)

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD000005",
		ClientID:    uuid.New(),
		Status:      enums.OrderStatusDelivered,
		TotalAmount: amount("25.00"),
	}
	invoice, err := svc.CreateForOrder(context.Background(), nil, order)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	if invoice.InvoiceNumber != "INV000001" {
		t.Fatalf("unexpected invoice number %s", invoice.InvoiceNumber)
	}
	if invoice.Status != enums.InvoiceStatusPending {
		t.Fatalf("expected pending got %s", invoice.Status)
	}
	if !invoice.Subtotal.Equal(amount("25.00")) {
		t.Fatalf("expected subtotal 25.00 got %s", invoice.Subtotal)
	}
	if !invoice.TaxAmount.Equal(amount("5.00")) {
		t.Fatalf("expected tax 5.00 got %s", invoice.TaxAmount)
	}
	if !invoice.TotalAmount.Equal(amount("30.00")) {
		t.Fatalf("expected total 30.00 got %s", invoice.TotalAmount)
	}
	wantDue := invoice.IssueDate.AddDate(0, 0, 30)
	if !invoice.DueDate.Equal(wantDue) {
		t.Fatalf("expected due %s got %s", wantDue, invoice.DueDate)
	}
	if invoice.Notes == nil || *invoice.Notes != "Automatically generated for delivered order ORD000005" {
		t.Fatalf("unexpected notes %v", invoice.Notes)
	}
}

func TestCreateForOrderRejectsDuplicate(t *testing.T) {
	repo := &stubBillingRepo{}
	svc := newTestBillingService(t, repo)

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD000009",
		ClientID:    uuid.New(),
		TotalAmount: amount("100.00"),
	}
	if _, err := svc.CreateForOrder(context.Background(), nil, order); err != nil {
		t.Fatalf("first invoice failed: %v", err)
	}

	_, err := svc.CreateForOrder(context.Background(), nil, order)
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict got %v", err)
	}
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	repo := &stubBillingRepo{}
	svc := newTestBillingService(t, repo)

	order := &models.Order{ID: uuid.New(), OrderNumber: "ORD000001", ClientID: uuid.New(), TotalAmount: amount("25.00")}
	invoice, err := svc.CreateForOrder(context.Background(), nil, order)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	// Partial payment first.
	_, updated, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		Amount:        amount("10.00"),
		PaymentMethod: enums.PaymentMethodBankTransfer,
		ActorID:       uuid.New(),
	})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if updated.Status != enums.InvoiceStatusPartiallyPaid {
		t.Fatalf("expected partially_paid got %s", updated.Status)
	}

	// Remaining balance settles the invoice.
	_, updated, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		Amount:        amount("20.00"),
		PaymentMethod: enums.PaymentMethodCheck,
		ActorID:       uuid.New(),
	})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if updated.Status != enums.InvoiceStatusPaid {
		t.Fatalf("expected paid got %s", updated.Status)
	}

	total, err := svc.TotalPaid(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("total paid: %v", err)
	}
	if !total.Equal(amount("30.00")) {
		t.Fatalf("expected total paid 30.00 got %s", total)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := newTestBillingService(t, &stubBillingRepo{})

	_, _, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     uuid.New(),
		Amount:        amount("-5.00"),
		PaymentMethod: enums.PaymentMethodCash,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}

	_, _, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     uuid.New(),
		Amount:        amount("5.00"),
		PaymentMethod: enums.PaymentMethod("bitcoin"),
	})
	coded = pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestRecordPaymentRejectsCancelledInvoice(t *testing.T) {
	repo := &stubBillingRepo{}
	svc := newTestBillingService(t, repo)

	order := &models.Order{ID: uuid.New(), OrderNumber: "ORD000002", ClientID: uuid.New(), TotalAmount: amount("50.00")}
	invoice, err := svc.CreateForOrder(context.Background(), nil, order)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	invoice.Status = enums.InvoiceStatusCancelled

	_, _, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:     invoice.ID,
		Amount:        amount("50.00"),
		PaymentMethod: enums.PaymentMethodCreditCard,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestIssueCreditNoteLeavesInvoiceUntouched(t *testing.T) {
	repo := &stubBillingRepo{}
	svc := newTestBillingService(t, repo)

	order := &models.Order{ID: uuid.New(), OrderNumber: "ORD000003", ClientID: uuid.New(), TotalAmount: amount("40.00")}
	invoice, err := svc.CreateForOrder(context.Background(), nil, order)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	originalStatus := invoice.Status
	originalTotal := invoice.TotalAmount

	note, err := svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: invoice.ID,
		Amount:    amount("12.00"),
		Reason:    "damaged panels on arrival",
		ActorID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if note.CreditNoteNumber != "CN000001" {
		t.Fatalf("unexpected credit note number %s", note.CreditNoteNumber)
	}

	if invoice.Status != originalStatus {
		t.Fatalf("credit note changed invoice status to %s", invoice.Status)
	}
	if !invoice.TotalAmount.Equal(originalTotal) {
		t.Fatalf("credit note changed invoice total to %s", invoice.TotalAmount)
	}
}

func TestIssueCreditNoteRequiresReason(t *testing.T) {
	svc := newTestBillingService(t, &stubBillingRepo{})

	_, err := svc.IssueCreditNote(context.Background(), IssueCreditNoteInput{
		InvoiceID: uuid.New(),
		Amount:    amount("5.00"),
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestMarkOverdueReportsAffectedRows(t *testing.T) {
	repo := &stubBillingRepo{overdueCount: 3}
	svc := newTestBillingService(t, repo)

	affected, err := svc.MarkOverdue(context.Background())
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 got %d", affected)
	}
}
