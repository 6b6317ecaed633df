package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// ListMovementsFilter narrows stock movement listings.
type ListMovementsFilter struct {
	ProductID    *uuid.UUID
	MovementType *enums.MovementType
	Limit        int
	Offset       int
}

// ListPurchaseOrdersFilter narrows purchase order listings.
type ListPurchaseOrdersFilter struct {
	SupplierID *uuid.UUID
	Status     *enums.PurchaseOrderStatus
	Limit      int
	Offset     int
}

// Repository is the persistence surface for stock, suppliers and purchase orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	LockProductForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProductStock(ctx context.Context, id uuid.UUID, quantity int) error
	ListLowStockProducts(ctx context.Context) ([]models.Product, error)

	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, filter ListMovementsFilter) ([]models.StockMovement, error)

	CreateSupplier(ctx context.Context, supplier *models.Supplier) error
	FindSupplierByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier *models.Supplier) error

	CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error
	FindPurchaseOrderByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter ListPurchaseOrdersFilter) ([]models.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseOrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LockProductForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) UpdateProductStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock_quantity", quantity).Error
}

func (r *repository) ListLowStockProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("stock_quantity <= min_stock_threshold").
		Where("is_active = ?", true).
		Order("stock_quantity ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, filter ListMovementsFilter) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.MovementType != nil {
		query = query.Where("movement_type = ?", *filter.MovementType)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var movements []models.StockMovement
	if err := query.Order("created_at DESC").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

func (r *repository) FindSupplierByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *repository) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *repository) UpdateSupplier(ctx context.Context, supplier *models.Supplier) error {
	return r.db.WithContext(ctx).Save(supplier).Error
}

func (r *repository) CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindPurchaseOrderByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListPurchaseOrders(ctx context.Context, filter ListPurchaseOrdersFilter) ([]models.PurchaseOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.PurchaseOrder{}).Preload("Items")
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
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

	var orders []models.PurchaseOrder
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) UpdatePurchaseOrderStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseOrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ?", id).
		Update("status", status).Error
}
