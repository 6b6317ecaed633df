package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	FirstName    string         `gorm:"column:first_name;not null"`
	LastName     string         `gorm:"column:last_name;not null"`
	Role         enums.UserRole `gorm:"column:role;not null;default:'client'"`
	PhoneNumber  *string        `gorm:"column:phone_number"`
	CompanyName  *string        `gorm:"column:company_name"`
	Address      *string        `gorm:"column:address"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
