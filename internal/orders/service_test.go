package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/internal/inventory"
	"github.com/panelcraft/panelcraft-backend/internal/sequence"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

type stubOrdersRepo struct {
	order           *models.Order
	createdOrder    *models.Order
	events          []models.DeliveryStatusUpdate
	updateCallCount int
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.createdOrder = order
	return nil
}

func (s *stubOrdersRepo) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) LockOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindOrderByID(ctx, id)
}

func (s *stubOrdersRepo) ListOrders(ctx context.Context, filter ListOrdersFilter) ([]models.Order, error) {
	if s.order == nil {
		return nil, nil
	}
	return []models.Order{*s.order}, nil
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, order *models.Order) error {
	s.updateCallCount++
	return nil
}

func (s *stubOrdersRepo) CreateDeliveryUpdate(ctx context.Context, update *models.DeliveryStatusUpdate) error {
	s.events = append(s.events, *update)
	return nil
}

func (s *stubOrdersRepo) ListDeliveryUpdates(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusUpdate, error) {
	return s.events, nil
}

type stubStockReserver struct {
	products map[uuid.UUID]*models.Product
	calls    []inventory.ReserveStockInput
	err      error
}

func (s *stubStockReserver) ReserveStock(ctx context.Context, tx *gorm.DB, input inventory.ReserveStockInput) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, input)
	product, ok := s.products[input.ProductID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

type stubInvoiceCreator struct {
	invoices []*models.Invoice
	err      error
}

func (s *stubInvoiceCreator) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	invoice := &models.Invoice{
		ID:       uuid.New(),
		OrderID:  order.ID,
		ClientID: order.ClientID,
		Status:   enums.InvoiceStatusPending,
	}
	s.invoices = append(s.invoices, invoice)
	return invoice, nil
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

func newTestService(t *testing.T, repo *stubOrdersRepo, stock *stubStockReserver, invoices *stubInvoiceCreator) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, stock, invoices, &stubNumberGenerator{})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("bad decimal %q", s))
	}
	return d
}

func TestCreateOrderTotals(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()
	stock := &stubStockReserver{products: map[uuid.UUID]*models.Product{
		productA: {ID: productA, Price: price("10.50")},
		productB: {ID: productB, Price: price("4.00")},
	}}
	repo := &stubOrdersRepo{}
	svc := newTestService(t, repo, stock, &stubInvoiceCreator{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID:        uuid.New(),
		ShippingAddress: "12 Rue des Panneaux, Lyon",
		Items: []OrderItemInput{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 1},
		},
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	if order.OrderNumber != "ORD000001" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending got %s", order.Status)
	}
	if !order.TotalAmount.Equal(price("25.00")) {
		t.Fatalf("expected total 25.00 got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(order.Items))
	}
	if !order.Items[0].TotalPrice.Equal(price("21.00")) {
		t.Fatalf("expected line total 21.00 got %s", order.Items[0].TotalPrice)
	}
	if len(stock.calls) != 2 {
		t.Fatalf("expected 2 stock reservations got %d", len(stock.calls))
	}
	if stock.calls[0].ReferenceNumber != "ORD000001" {
		t.Fatalf("expected movement reference ORD000001 got %s", stock.calls[0].ReferenceNumber)
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubStockReserver{}, &stubInvoiceCreator{})

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID:        uuid.New(),
		ShippingAddress: "somewhere",
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCreateOrderRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubStockReserver{}, &stubInvoiceCreator{})

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID:        uuid.New(),
		ShippingAddress: "somewhere",
		Items:           []OrderItemInput{{ProductID: uuid.New(), Quantity: 0}},
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCreateOrderPropagatesStockFailure(t *testing.T) {
	stockErr := pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	stock := &stubStockReserver{err: stockErr}
	repo := &stubOrdersRepo{}
	svc := newTestService(t, repo, stock, &stubInvoiceCreator{})

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID:        uuid.New(),
		ShippingAddress: "somewhere",
		Items:           []OrderItemInput{{ProductID: uuid.New(), Quantity: 3}},
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if repo.createdOrder != nil {
		t.Fatal("order must not be created when reservation fails")
	}
}

func TestMarkDeliveredIssuesInvoiceOnce(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{
		ID:          orderID,
		OrderNumber: "ORD000007",
		ClientID:    uuid.New(),
		Status:      enums.OrderStatusInTransit,
	}}
	invoices := &stubInvoiceCreator{}
	svc := newTestService(t, repo, &stubStockReserver{}, invoices)

	order, err := svc.MarkDelivered(context.Background(), MarkDeliveredInput{OrderID: orderID, ActorID: uuid.New()})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered got %s", order.Status)
	}
	if order.DeliveryDate == nil {
		t.Fatal("expected delivery date to be set")
	}
	if len(invoices.invoices) != 1 {
		t.Fatalf("expected exactly one invoice got %d", len(invoices.invoices))
	}
	if len(repo.events) != 1 || repo.events[0].Status != enums.OrderStatusDelivered {
		t.Fatalf("expected one delivered tracking event got %+v", repo.events)
	}

	// A second delivery attempt must fail and not produce another invoice.
	_, err = svc.MarkDelivered(context.Background(), MarkDeliveredInput{OrderID: orderID, ActorID: uuid.New()})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if len(invoices.invoices) != 1 {
		t.Fatalf("expected invoice count to stay at one got %d", len(invoices.invoices))
	}
}

func TestTransitionRejectsBackwardMove(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{
		ID:     orderID,
		Status: enums.OrderStatusInTransit,
	}}
	svc := newTestService(t, repo, &stubStockReserver{}, &stubInvoiceCreator{})

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusConfirmed,
		ActorID:   uuid.New(),
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("no tracking event expected got %d", len(repo.events))
	}
}

func TestTransitionAllowsCancellation(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{
		ID:     orderID,
		Status: enums.OrderStatusInProduction,
	}}
	invoices := &stubInvoiceCreator{}
	svc := newTestService(t, repo, &stubStockReserver{}, invoices)

	order, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusCancelled,
		ActorID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled got %s", order.Status)
	}
	if len(invoices.invoices) != 0 {
		t.Fatal("cancellation must not issue an invoice")
	}

	// Cancelled orders accept no further transitions.
	_, err = svc.Transition(context.Background(), TransitionInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusConfirmed,
		ActorID:   uuid.New(),
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestAddDeliveryUpdateMovesOrderForward(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{
		ID:     orderID,
		Status: enums.OrderStatusReadyForDelivery,
	}}
	svc := newTestService(t, repo, &stubStockReserver{}, &stubInvoiceCreator{})

	location := "Lyon depot"
	order, err := svc.AddDeliveryUpdate(context.Background(), AddDeliveryUpdateInput{
		OrderID:  orderID,
		Status:   enums.OrderStatusInTransit,
		Location: &location,
		ActorID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusInTransit {
		t.Fatalf("expected in_transit got %s", order.Status)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected one tracking event got %d", len(repo.events))
	}
	if repo.events[0].Location == nil || *repo.events[0].Location != location {
		t.Fatalf("expected location %q got %+v", location, repo.events[0].Location)
	}
}

func TestAddDeliveryUpdateSameStatusRecordsEventOnly(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{order: &models.Order{
		ID:     orderID,
		Status: enums.OrderStatusInTransit,
	}}
	svc := newTestService(t, repo, &stubStockReserver{}, &stubInvoiceCreator{})

	_, err := svc.AddDeliveryUpdate(context.Background(), AddDeliveryUpdateInput{
		OrderID: orderID,
		Status:  enums.OrderStatusInTransit,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.updateCallCount != 0 {
		t.Fatalf("order row must not be updated, got %d updates", repo.updateCallCount)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected one tracking event got %d", len(repo.events))
	}
}
