package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a missing primary key before insert so ids are known to the
// caller without relying on database defaults.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (b *Brand) BeforeCreate(*gorm.DB) error         { assignID(&b.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error       { assignID(&p.ID); return nil }
func (c *Cart) BeforeCreate(*gorm.DB) error          { assignID(&c.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error         { assignID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error     { assignID(&i.ID); return nil }
func (p *Payment) BeforeCreate(*gorm.DB) error       { assignID(&p.ID); return nil }
func (p *PickupRequest) BeforeCreate(*gorm.DB) error { assignID(&p.ID); return nil }
func (e *Evaluation) BeforeCreate(*gorm.DB) error    { assignID(&e.ID); return nil }
func (e *LedgerEvent) BeforeCreate(*gorm.DB) error   { assignID(&e.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error   { assignID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error     { assignID(&d.ID); return nil }
