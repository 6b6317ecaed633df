package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

// Service defines catalog-level operations beyond repository reads.
type Service interface {
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter ListProductsFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	AddReview(ctx context.Context, input AddReviewInput) (*models.ProductReview, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// CreateCategoryInput captures the data required to create a category.
type CreateCategoryInput struct {
	Name        string
	Description *string
}

// UpdateCategoryInput carries partial category updates.
type UpdateCategoryInput struct {
	Name        *string
	Description *string
}

// CreateProductInput captures the data required to create a product.
type CreateProductInput struct {
	Name              string
	PanelType         enums.PanelType
	CategoryID        uuid.UUID
	Description       string
	TechnicalSpecs    *string
	Price             decimal.Decimal
	StockQuantity     int
	MinStockThreshold int
}

// UpdateProductInput carries partial product updates. Stock is intentionally
// absent: stock only changes through recorded movements.
type UpdateProductInput struct {
	Name              *string
	PanelType         *enums.PanelType
	CategoryID        *uuid.UUID
	Description       *string
	TechnicalSpecs    *string
	Price             *decimal.Decimal
	MinStockThreshold *int
	IsActive          *bool
}

// AddReviewInput captures a product review submission.
type AddReviewInput struct {
	ProductID uuid.UUID
	UserID    uuid.UUID
	Rating    int
	Comment   string
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	category := &models.Category{
		Name:        input.Name,
		Description: input.Description,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*models.Category, error) {
	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "category not found", "find category")
	}
	if input.Name != nil {
		category.Name = *input.Name
	}
	if input.Description != nil {
		category.Description = input.Description
	}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
	}
	return category, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindCategoryByID(ctx, id); err != nil {
		return notFoundOr(err, "category not found", "find category")
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if !input.PanelType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid panel type")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	if _, err := s.repo.FindCategoryByID(ctx, input.CategoryID); err != nil {
		return nil, notFoundOr(err, "category not found", "find category")
	}

	threshold := input.MinStockThreshold
	if threshold <= 0 {
		threshold = 10
	}

	product := &models.Product{
		Name:              input.Name,
		PanelType:         input.PanelType,
		CategoryID:        input.CategoryID,
		Description:       input.Description,
		TechnicalSpecs:    input.TechnicalSpecs,
		Price:             input.Price,
		StockQuantity:     input.StockQuantity,
		MinStockThreshold: threshold,
		IsActive:          true,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "find product")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, filter ListProductsFilter) ([]models.Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "find product")
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.PanelType != nil {
		if !input.PanelType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid panel type")
		}
		product.PanelType = *input.PanelType
	}
	if input.CategoryID != nil {
		if _, err := s.repo.FindCategoryByID(ctx, *input.CategoryID); err != nil {
			return nil, notFoundOr(err, "category not found", "find category")
		}
		product.CategoryID = *input.CategoryID
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.TechnicalSpecs != nil {
		product.TechnicalSpecs = input.TechnicalSpecs
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		product.Price = *input.Price
	}
	if input.MinStockThreshold != nil {
		if *input.MinStockThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min stock threshold cannot be negative")
		}
		product.MinStockThreshold = *input.MinStockThreshold
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindProductByID(ctx, id); err != nil {
		return notFoundOr(err, "product not found", "find product")
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) AddReview(ctx context.Context, input AddReviewInput) (*models.ProductReview, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if input.Comment == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment is required")
	}
	if _, err := s.repo.FindProductByID(ctx, input.ProductID); err != nil {
		return nil, notFoundOr(err, "product not found", "find product")
	}

	review := &models.ProductReview{
		ProductID: input.ProductID,
		UserID:    input.UserID,
		Rating:    input.Rating,
		Comment:   input.Comment,
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "review already exists for this product")
	}
	return review, nil
}

func (s *service) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error) {
	reviews, err := s.repo.ListReviewsByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return reviews, nil
}

func notFoundOr(err error, notFoundMsg, wrapMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, wrapMsg)
}
