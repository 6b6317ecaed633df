package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

// Service defines stock, supplier and purchase order operations.
type Service interface {
	RecordMovement(ctx context.Context, input RecordMovementInput) (*models.StockMovement, error)
	ListMovements(ctx context.Context, filter ListMovementsFilter) ([]models.StockMovement, error)
	LowStockProducts(ctx context.Context) ([]models.Product, error)

	// ReserveStock runs inside the caller's transaction. It locks the product
	// row, fails when stock is insufficient, decrements stock and records a
	// sale movement. The product is returned for price snapshotting.
	ReserveStock(ctx context.Context, tx *gorm.DB, input ReserveStockInput) (*models.Product, error)

	CreateSupplier(ctx context.Context, input SupplierInput) (*models.Supplier, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, id uuid.UUID, input SupplierInput) (*models.Supplier, error)

	CreatePurchaseOrder(ctx context.Context, input CreatePurchaseOrderInput) (*models.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter ListPurchaseOrdersFilter) ([]models.PurchaseOrder, error)
	TransitionPurchaseOrder(ctx context.Context, input TransitionPurchaseOrderInput) (*models.PurchaseOrder, error)
}

type service struct {
	repo Repository
	tx   txRunner
	seq  numberGenerator
}

// NewService builds an inventory service with the required dependencies.
func NewService(repo Repository, tx txRunner, seq numberGenerator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if seq == nil {
		return nil, fmt.Errorf("number generator required")
	}
	return &service{repo: repo, tx: tx, seq: seq}, nil
}

// RecordMovementInput captures a manual stock movement. Quantity is signed:
// negative for outgoing stock.
type RecordMovementInput struct {
	ProductID       uuid.UUID
	MovementType    enums.MovementType
	Quantity        int
	ReferenceNumber *string
	Notes           *string
	ActorID         uuid.UUID
}

// ReserveStockInput captures an order-driven stock decrement.
type ReserveStockInput struct {
	ProductID       uuid.UUID
	Quantity        int
	ReferenceNumber string
	ActorID         uuid.UUID
}

// SupplierInput captures supplier contact data.
type SupplierInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	IsActive      *bool
}

// PurchaseOrderItemInput is one requested product line.
type PurchaseOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreatePurchaseOrderInput captures a new purchase order.
type CreatePurchaseOrderInput struct {
	SupplierID           uuid.UUID
	ExpectedDeliveryDate time.Time
	Notes                *string
	Items                []PurchaseOrderItemInput
	ActorID              uuid.UUID
}

// TransitionPurchaseOrderInput moves a purchase order through its lifecycle.
type TransitionPurchaseOrderInput struct {
	PurchaseOrderID uuid.UUID
	NewStatus       enums.PurchaseOrderStatus
	ActorID         uuid.UUID
}

var purchaseOrderTransitions = map[enums.PurchaseOrderStatus][]enums.PurchaseOrderStatus{
	enums.PurchaseOrderStatusDraft:     {enums.PurchaseOrderStatusSubmitted, enums.PurchaseOrderStatusCancelled},
	enums.PurchaseOrderStatusSubmitted: {enums.PurchaseOrderStatusApproved, enums.PurchaseOrderStatusCancelled},
	enums.PurchaseOrderStatusApproved:  {enums.PurchaseOrderStatusReceived, enums.PurchaseOrderStatusCancelled},
}

func (s *service) RecordMovement(ctx context.Context, input RecordMovementInput) (*models.StockMovement, error) {
	if !input.MovementType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	if input.Quantity == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be zero")
	}

	var movement *models.StockMovement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.LockProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return productNotFoundOr(err)
		}

		newStock := product.StockQuantity + input.Quantity
		if newStock < 0 {
			return insufficientStockError(product, -input.Quantity)
		}
		if err := repo.UpdateProductStock(ctx, product.ID, newStock); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
		}

		movement = &models.StockMovement{
			ProductID:       input.ProductID,
			MovementType:    input.MovementType,
			Quantity:        input.Quantity,
			ReferenceNumber: input.ReferenceNumber,
			Notes:           input.Notes,
			PerformedBy:     input.ActorID,
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock movement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) ListMovements(ctx context.Context, filter ListMovementsFilter) ([]models.StockMovement, error) {
	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return movements, nil
}

func (s *service) LowStockProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
	}
	return products, nil
}

func (s *service) ReserveStock(ctx context.Context, tx *gorm.DB, input ReserveStockInput) (*models.Product, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	product, err := repo.LockProductForUpdate(ctx, input.ProductID)
	if err != nil {
		return nil, productNotFoundOr(err)
	}
	if product.StockQuantity < input.Quantity {
		return nil, insufficientStockError(product, input.Quantity)
	}

	if err := repo.UpdateProductStock(ctx, product.ID, product.StockQuantity-input.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
	}

	reference := input.ReferenceNumber
	movement := &models.StockMovement{
		ProductID:       product.ID,
		MovementType:    enums.MovementTypeSale,
		Quantity:        -input.Quantity,
		ReferenceNumber: &reference,
		PerformedBy:     input.ActorID,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock movement")
	}

	product.StockQuantity -= input.Quantity
	return product, nil
}

func (s *service) CreateSupplier(ctx context.Context, input SupplierInput) (*models.Supplier, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier name is required")
	}
	supplier := &models.Supplier{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		IsActive:      true,
	}
	if input.IsActive != nil {
		supplier.IsActive = *input.IsActive
	}
	if err := s.repo.CreateSupplier(ctx, supplier); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create supplier")
	}
	return supplier, nil
}

func (s *service) GetSupplier(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	supplier, err := s.repo.FindSupplierByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find supplier")
	}
	return supplier, nil
}

func (s *service) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	suppliers, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	return suppliers, nil
}

func (s *service) UpdateSupplier(ctx context.Context, id uuid.UUID, input SupplierInput) (*models.Supplier, error) {
	supplier, err := s.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		supplier.Name = input.Name
	}
	if input.ContactPerson != "" {
		supplier.ContactPerson = input.ContactPerson
	}
	if input.Email != "" {
		supplier.Email = input.Email
	}
	if input.Phone != "" {
		supplier.Phone = input.Phone
	}
	if input.Address != "" {
		supplier.Address = input.Address
	}
	if input.IsActive != nil {
		supplier.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateSupplier(ctx, supplier); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update supplier")
	}
	return supplier, nil
}

func (s *service) CreatePurchaseOrder(ctx context.Context, input CreatePurchaseOrderInput) (*models.PurchaseOrder, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order must contain at least one item")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit price cannot be negative")
		}
	}
	if _, err := s.GetSupplier(ctx, input.SupplierID); err != nil {
		return nil, err
	}

	var created *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		number, err := s.seq.Next(ctx, tx, sequence.PrefixPurchaseOrder)
		if err != nil {
			return err
		}

		order := &models.PurchaseOrder{
			OrderNumber:          number,
			SupplierID:           input.SupplierID,
			Status:               enums.PurchaseOrderStatusDraft,
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			Notes:                input.Notes,
			CreatedBy:            input.ActorID,
		}
		for _, item := range input.Items {
			qty := decimal.NewFromInt(int64(item.Quantity))
			order.Items = append(order.Items, models.PurchaseOrderItem{
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.UnitPrice.Mul(qty),
			})
		}
		if err := repo.CreatePurchaseOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	order, err := s.repo.FindPurchaseOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find purchase order")
	}
	return order, nil
}

func (s *service) ListPurchaseOrders(ctx context.Context, filter ListPurchaseOrdersFilter) ([]models.PurchaseOrder, error) {
	orders, err := s.repo.ListPurchaseOrders(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase orders")
	}
	return orders, nil
}

func (s *service) TransitionPurchaseOrder(ctx context.Context, input TransitionPurchaseOrderInput) (*models.PurchaseOrder, error) {
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid purchase order status")
	}

	var updated *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindPurchaseOrderByID(ctx, input.PurchaseOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find purchase order")
		}

		if order.Status == input.NewStatus {
			updated = order
			return nil
		}
		if !purchaseOrderTransitionAllowed(order.Status, input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal purchase order transition").WithDetails(map[string]string{
				"from": string(order.Status),
				"to":   string(input.NewStatus),
			})
		}

		// Receiving stock happens atomically with the status flip.
		if input.NewStatus == enums.PurchaseOrderStatusReceived {
			for _, item := range order.Items {
				product, err := repo.LockProductForUpdate(ctx, item.ProductID)
				if err != nil {
					return productNotFoundOr(err)
				}
				if err := repo.UpdateProductStock(ctx, product.ID, product.StockQuantity+item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
				}
				reference := order.OrderNumber
				movement := &models.StockMovement{
					ProductID:       item.ProductID,
					MovementType:    enums.MovementTypePurchase,
					Quantity:        item.Quantity,
					ReferenceNumber: &reference,
					PerformedBy:     input.ActorID,
				}
				if err := repo.CreateMovement(ctx, movement); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock movement")
				}
			}
		}

		if err := repo.UpdatePurchaseOrderStatus(ctx, order.ID, input.NewStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
		}
		order.Status = input.NewStatus
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func purchaseOrderTransitionAllowed(from, to enums.PurchaseOrderStatus) bool {
	for _, candidate := range purchaseOrderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func productNotFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
}

func insufficientStockError(product *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").WithDetails(map[string]any{
		"product_id": product.ID.String(),
		"available":  product.StockQuantity,
		"requested":  requested,
	})
}
