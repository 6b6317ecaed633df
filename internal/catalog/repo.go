package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// ListProductsFilter narrows product listings.
type ListProductsFilter struct {
	CategoryID *uuid.UUID
	PanelType  *enums.PanelType
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

// Repository is the persistence surface for categories, products and reviews.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateCategory(ctx context.Context, category *models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	CreateProduct(ctx context.Context, product *models.Product) error
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter ListProductsFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	CreateReview(ctx context.Context, review *models.ProductReview) error
	ListReviewsByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repository) UpdateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{}).Error
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListProducts(ctx context.Context, filter ListProductsFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.PanelType != nil {
		query = query.Where("panel_type = ?", *filter.PanelType)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var products []models.Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

func (r *repository) CreateReview(ctx context.Context, review *models.ProductReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) ListReviewsByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error) {
	var reviews []models.ProductReview
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}
