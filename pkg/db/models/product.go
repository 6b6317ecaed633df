package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// Product is a catalog panel with live stock tracking.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name              string          `gorm:"column:name;not null"`
	PanelType         enums.PanelType `gorm:"column:panel_type;not null;default:'latte_plaquage'"`
	CategoryID        uuid.UUID       `gorm:"column:category_id;type:uuid;not null"`
	Description       string          `gorm:"column:description;not null"`
	TechnicalSpecs    *string         `gorm:"column:technical_specs;type:jsonb"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	StockQuantity     int             `gorm:"column:stock_quantity;not null;default:0"`
	MinStockThreshold int             `gorm:"column:min_stock_threshold;not null;default:10"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductReview is a 1-5 star rating left by a client, one per product per user.
type ProductReview struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_reviews_product_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_product_reviews_product_user"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   string    `gorm:"column:comment;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
