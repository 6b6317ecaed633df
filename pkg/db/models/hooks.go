package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IDs are generated application-side so inserts behave the same on Postgres
// and on the sqlite databases used in tests.

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error          { ensureID(&u.ID); return nil }
func (c *Category) BeforeCreate(tx *gorm.DB) error      { ensureID(&c.ID); return nil }
func (p *Product) BeforeCreate(tx *gorm.DB) error       { ensureID(&p.ID); return nil }
func (r *ProductReview) BeforeCreate(tx *gorm.DB) error { ensureID(&r.ID); return nil }
func (o *Order) BeforeCreate(tx *gorm.DB) error         { ensureID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(tx *gorm.DB) error     { ensureID(&i.ID); return nil }
func (d *DeliveryStatusUpdate) BeforeCreate(tx *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
func (i *Invoice) BeforeCreate(tx *gorm.DB) error       { ensureID(&i.ID); return nil }
func (p *Payment) BeforeCreate(tx *gorm.DB) error       { ensureID(&p.ID); return nil }
func (c *CreditNote) BeforeCreate(tx *gorm.DB) error    { ensureID(&c.ID); return nil }
func (q *Quote) BeforeCreate(tx *gorm.DB) error         { ensureID(&q.ID); return nil }
func (i *QuoteItem) BeforeCreate(tx *gorm.DB) error     { ensureID(&i.ID); return nil }
func (m *StockMovement) BeforeCreate(tx *gorm.DB) error { ensureID(&m.ID); return nil }
func (s *Supplier) BeforeCreate(tx *gorm.DB) error      { ensureID(&s.ID); return nil }
func (p *PurchaseOrder) BeforeCreate(tx *gorm.DB) error { ensureID(&p.ID); return nil }
func (i *PurchaseOrderItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
