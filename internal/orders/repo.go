package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LockOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrders(ctx context.Context, filter ListOrdersFilter) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items")
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

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":        order.Status,
			"delivery_date": order.DeliveryDate,
		}).Error
}

func (r *repository) CreateDeliveryUpdate(ctx context.Context, update *models.DeliveryStatusUpdate) error {
	return r.db.WithContext(ctx).Create(update).Error
}

func (r *repository) ListDeliveryUpdates(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusUpdate, error) {
	var updates []models.DeliveryStatusUpdate
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&updates).Error
	if err != nil {
		return nil, err
	}
	return updates, nil
}
