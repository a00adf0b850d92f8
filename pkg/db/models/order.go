package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/revo-backend/pkg/enums"
)

// Order is the immutable purchase snapshot plus its forward-only status.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	SubtotalCents    int64               `gorm:"column:subtotal_cents;not null"`
	TaxCents         int64               `gorm:"column:tax_cents;not null"`
	ShippingFeeCents int64               `gorm:"column:shipping_fee_cents;not null"`
	TotalCents       int64               `gorm:"column:total_cents;not null"`
	Currency         string              `gorm:"column:currency;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Source           enums.OrderSource   `gorm:"column:source;not null"`
	ShippingAddress  datatypes.JSON      `gorm:"column:shipping_address;type:jsonb"`
	Notes            *string             `gorm:"column:notes"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;references:ID"`
	Payments         []Payment           `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem freezes product title and price at checkout. ProductID is a weak
// reference; catalog deletes never touch it.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	TitleSnapshot  string    `gorm:"column:title_snapshot;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	Position       int       `gorm:"column:position;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Payment records one gateway intent for an order.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	Provider    string              `gorm:"column:provider;not null"`
	IntentRef   string              `gorm:"column:intent_ref;not null;uniqueIndex"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Currency    string              `gorm:"column:currency;not null"`
	Status      enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
