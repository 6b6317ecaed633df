package models

import (
	"time"

	"github.com/google/uuid"
)

// Supplier provides raw panels through purchase orders.
type Supplier struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	ContactPerson string    `gorm:"column:contact_person;not null"`
	Email         string    `gorm:"column:email;not null"`
	Phone         string    `gorm:"column:phone;not null"`
	Address       string    `gorm:"column:address;not null"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
