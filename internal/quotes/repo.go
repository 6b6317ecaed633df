package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// ListQuotesFilter narrows quote listings.
type ListQuotesFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.QuoteStatus
	Limit      int
	Offset     int
}

// Repository is the persistence surface for quotes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateQuote(ctx context.Context, quote *models.Quote) error
	FindQuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	LockQuoteForUpdate(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	ListQuotes(ctx context.Context, filter ListQuotesFilter) ([]models.Quote, error)
	UpdateQuote(ctx context.Context, quote *models.Quote) error
	UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error
	ReplaceQuoteItems(ctx context.Context, quoteID uuid.UUID, items []models.QuoteItem) error
	ExpireSentQuotes(ctx context.Context, asOf time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quotes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateQuote(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindQuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) LockQuoteForUpdate(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("quote_id = ?", quote.ID).
		Order("created_at ASC").
		Find(&quote.Items).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) ListQuotes(ctx context.Context, filter ListQuotesFilter) ([]models.Quote, error) {
	query := r.db.WithContext(ctx).Model(&models.Quote{}).Preload("Items")
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
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

	var quotes []models.Quote
	if err := query.Order("created_at DESC").Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *repository) UpdateQuote(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).
		Omit("Items").
		Save(quote).Error
}

func (r *repository) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ExpireSentQuotes keeps the status guard in the WHERE clause so a quote
// accepted after listing cannot be flipped to expired.
func (r *repository) ExpireSentQuotes(ctx context.Context, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("status = ?", enums.QuoteStatusSent).
		Where("valid_until <= ?", asOf).
		Update("status", enums.QuoteStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *repository) ReplaceQuoteItems(ctx context.Context, quoteID uuid.UUID, items []models.QuoteItem) error {
	if err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Delete(&models.QuoteItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}
