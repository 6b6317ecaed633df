package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/internal/inventory"
	"github.com/panelcraft/panelcraft-backend/internal/sequence"
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

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	CreateInTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListOrdersFilter) ([]models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	MarkDelivered(ctx context.Context, input MarkDeliveredInput) (*models.Order, error)
	AddDeliveryUpdate(ctx context.Context, input AddDeliveryUpdateInput) (*models.Order, error)
	ListDeliveryUpdates(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusUpdate, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	stock    StockReserver
	invoices InvoiceCreator
	seq      numberGenerator
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, stock StockReserver, invoices InvoiceCreator, seq numberGenerator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if invoices == nil {
		return nil, fmt.Errorf("invoice creator required")
	}
	if seq == nil {
		return nil, fmt.Errorf("number generator required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		stock:    stock,
		invoices: invoices,
		seq:      seq,
	}, nil
}

// OrderItemInput is one requested product line.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput captures the data required to place an order.
type CreateOrderInput struct {
	ClientID        uuid.UUID
	ShippingAddress string
	DeliveryNotes   *string
	Items           []OrderItemInput
	ActorID         uuid.UUID
}

// TransitionInput moves an order to a new status directly.
type TransitionInput struct {
	OrderID   uuid.UUID
	NewStatus enums.OrderStatus
	ActorID   uuid.UUID
}

// MarkDeliveredInput finalizes an order and triggers invoicing.
type MarkDeliveredInput struct {
	OrderID      uuid.UUID
	DeliveryDate *time.Time
	ActorID      uuid.UUID
}

// AddDeliveryUpdateInput appends a tracking event for an order.
type AddDeliveryUpdateInput struct {
	OrderID  uuid.UUID
	Status   enums.OrderStatus
	Location *string
	Notes    *string
	ActorID  uuid.UUID
}

// statusRank orders the delivery pipeline. Transitions may only move forward,
// except cancellation which is allowed from any non-terminal status.
var statusRank = map[enums.OrderStatus]int{
	enums.OrderStatusPending:          0,
	enums.OrderStatusConfirmed:        1,
	enums.OrderStatusInProduction:     2,
	enums.OrderStatusReadyForDelivery: 3,
	enums.OrderStatusInTransit:        4,
	enums.OrderStatusDelivered:        5,
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.CreateInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateInTx places an order inside the caller's transaction so callers can
// tie the order to their own writes, e.g. flipping a quote to converted.
func (s *service) CreateInTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if input.ShippingAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	var invalid error
	for i, item := range input.Items {
		if item.Quantity <= 0 {
			invalid = multierr.Append(invalid, fmt.Errorf("item %d: quantity must be positive", i))
		}
	}
	if invalid != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, invalid, "invalid order items")
	}

	repo := s.repo.WithTx(tx)

	number, err := s.seq.Next(ctx, tx, sequence.PrefixOrder)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		product, err := s.stock.ReserveStock(ctx, tx, inventory.ReserveStockInput{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			ReferenceNumber: number,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return nil, err
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, models.OrderItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
	}

	order := &models.Order{
		OrderNumber:     number,
		ClientID:        input.ClientID,
		Status:          enums.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: input.ShippingAddress,
		DeliveryNotes:   input.DeliveryNotes,
		Items:           items,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, orderNotFoundOr(err)
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filter ListOrdersFilter) ([]models.Order, error) {
	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return orderNotFoundOr(err)
		}
		if err := s.applyStatus(ctx, tx, order, input.NewStatus, transitionMeta{actorID: input.ActorID}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) MarkDelivered(ctx context.Context, input MarkDeliveredInput) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return orderNotFoundOr(err)
		}
		meta := transitionMeta{actorID: input.ActorID, deliveryDate: input.DeliveryDate}
		if err := s.applyStatus(ctx, tx, order, enums.OrderStatusDelivered, meta); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) AddDeliveryUpdate(ctx context.Context, input AddDeliveryUpdateInput) (*models.Order, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return orderNotFoundOr(err)
		}
		meta := transitionMeta{
			actorID:  input.ActorID,
			location: input.Location,
			notes:    input.Notes,
		}
		if err := s.applyStatus(ctx, tx, order, input.Status, meta); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) ListDeliveryUpdates(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusUpdate, error) {
	if _, err := s.repo.FindOrderByID(ctx, orderID); err != nil {
		return nil, orderNotFoundOr(err)
	}
	updates, err := s.repo.ListDeliveryUpdates(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery updates")
	}
	return updates, nil
}

type transitionMeta struct {
	actorID      uuid.UUID
	location     *string
	notes        *string
	deliveryDate *time.Time
}

// applyStatus is the single authoritative transition path. Every status change
// records a tracking event, and reaching delivered issues the invoice in the
// same transaction.
func (s *service) applyStatus(ctx context.Context, tx *gorm.DB, order *models.Order, newStatus enums.OrderStatus, meta transitionMeta) error {
	repo := s.repo.WithTx(tx)

	switch order.Status {
	case enums.OrderStatusDelivered:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already delivered").WithDetails(map[string]string{
			"order_number": order.OrderNumber,
		})
	case enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}

	if order.Status == newStatus {
		// Tracking ping without a status change, e.g. a new location report.
		return s.recordEvent(ctx, repo, order, newStatus, meta)
	}

	if newStatus != enums.OrderStatusCancelled && statusRank[newStatus] <= statusRank[order.Status] {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order transition").WithDetails(map[string]string{
			"from": string(order.Status),
			"to":   string(newStatus),
		})
	}

	order.Status = newStatus
	if newStatus == enums.OrderStatusDelivered {
		deliveredAt := time.Now()
		if meta.deliveryDate != nil {
			deliveredAt = *meta.deliveryDate
		}
		order.DeliveryDate = &deliveredAt
	}

	if err := repo.UpdateOrder(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	if err := s.recordEvent(ctx, repo, order, newStatus, meta); err != nil {
		return err
	}

	if newStatus == enums.OrderStatusDelivered {
		if _, err := s.invoices.CreateForOrder(ctx, tx, order); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) recordEvent(ctx context.Context, repo Repository, order *models.Order, status enums.OrderStatus, meta transitionMeta) error {
	event := &models.DeliveryStatusUpdate{
		OrderID:   order.ID,
		Status:    status,
		Location:  meta.location,
		Notes:     meta.notes,
		UpdatedBy: meta.actorID,
	}
	if err := repo.CreateDeliveryUpdate(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery update")
	}
	return nil
}

func orderNotFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
