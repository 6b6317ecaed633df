package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/internal/inventory"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// ListOrdersFilter narrows order listings.
type ListOrdersFilter struct {
	ClientID *uuid.UUID
	Status   *enums.OrderStatus
	Limit    int
	Offset   int
}

// Repository is the persistence surface for orders and their tracking events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter ListOrdersFilter) ([]models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error

	CreateDeliveryUpdate(ctx context.Context, update *models.DeliveryStatusUpdate) error
	ListDeliveryUpdates(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusUpdate, error)
}

// StockReserver decrements product stock within the order transaction.
type StockReserver interface {
	ReserveStock(ctx context.Context, tx *gorm.DB, input inventory.ReserveStockInput) (*models.Product, error)
}

// InvoiceCreator issues the invoice when an order reaches delivered. It runs
// inside the order transaction so the status flip and the invoice commit or
// roll back together.
type InvoiceCreator interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error)
}
