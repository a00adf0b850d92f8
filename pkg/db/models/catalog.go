package models

import (
	"time"

	"github.com/google/uuid"
)

// Brand is a device manufacturer accepted for trade-in.
type Brand struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Product is a sellable catalog listing.
type Product struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BrandID        *uuid.UUID `gorm:"column:brand_id;type:uuid"`
	Title          string     `gorm:"column:title;not null"`
	ListPriceCents *int64     `gorm:"column:list_price_cents"`
	BasePriceCents int64      `gorm:"column:base_price_cents;not null"`
	StockQty       int        `gorm:"column:stock_qty;not null"`
	IsActive       bool       `gorm:"column:is_active;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// UnitPriceCents is the list price when set, else the base price.
func (p Product) UnitPriceCents() int64 {
	if p.ListPriceCents != nil {
		return *p.ListPriceCents
	}
	return p.BasePriceCents
}
