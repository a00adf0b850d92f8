package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once the order snapshot and its payment intent
// are persisted.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Source        enums.OrderSource   `json:"source"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int64               `json:"total_cents"`
	Currency      string              `json:"currency"`
	ItemCount     int                 `json:"item_count"`
	IntentRef     string              `json:"intent_ref,omitempty"`
}

// PaymentStatusEvent covers order_paid, payment_failed and order_refunded.
type PaymentStatusEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	IntentRef     string              `json:"intent_ref"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
	AmountCents   int64               `json:"amount_cents"`
	Currency      string              `json:"currency"`
	GatewayEvent  string              `json:"gateway_event_id,omitempty"`
}

// OrderStatusChangedEvent is emitted for admin-driven fulfillment moves.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// PickupSubmittedEvent tells logistics a device is waiting for collection.
type PickupSubmittedEvent struct {
	PickupID    uuid.UUID             `json:"pickup_id"`
	UserID      uuid.UUID             `json:"user_id"`
	BrandID     *uuid.UUID            `json:"brand_id,omitempty"`
	BrandName   *string               `json:"brand_name,omitempty"`
	ModelText   string                `json:"model_text"`
	Condition   enums.DeviceCondition `json:"condition"`
	PhotoCount  int                   `json:"photo_count"`
	ScheduledAt *string               `json:"scheduled_at,omitempty"`
}

// PickupEvaluatedEvent carries the evaluator's latest decision.
type PickupEvaluatedEvent struct {
	PickupID        uuid.UUID          `json:"pickup_id"`
	UserID          uuid.UUID          `json:"user_id"`
	EvaluationID    uuid.UUID          `json:"evaluation_id"`
	Status          enums.PickupStatus `json:"status"`
	FinalOfferCents *int64             `json:"final_offer_cents,omitempty"`
}

// OfferRespondedEvent records the owner's accept/reject decision.
type OfferRespondedEvent struct {
	PickupID        uuid.UUID          `json:"pickup_id"`
	UserID          uuid.UUID          `json:"user_id"`
	Action          enums.OfferAction  `json:"action"`
	Status          enums.PickupStatus `json:"status"`
	FinalOfferCents int64              `json:"final_offer_cents"`
}
