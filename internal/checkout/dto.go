package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/pkg/enums"
	"github.com/angelmondragon/revo-backend/pkg/types"
)

// CartCheckoutInput converts the caller's cart into an order.
type CartCheckoutInput struct {
	UserID          uuid.UUID
	ActorRole       enums.UserRole
	ShippingAddress *types.Address
}

// ExplicitItem is one line of a client-supplied item list. Name and price are
// informational; the catalog decides what the order actually contains.
type ExplicitItem struct {
	ProductID  uuid.UUID
	Name       string
	PriceCents int64
	Quantity   int
}

// ExplicitCheckoutInput creates an order from a client list without touching
// the cart.
type ExplicitCheckoutInput struct {
	UserID           uuid.UUID
	ActorRole        enums.UserRole
	Items            []ExplicitItem
	ClientTotalCents *int64
	PaymentMethod    enums.PaymentMethod
	ShippingAddress  *types.Address
}

// Result is returned once the order is committed. ClientSecret is empty for
// cash-on-delivery orders.
type Result struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Reference     string              `json:"reference"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Currency      string              `json:"currency"`
	ItemCount     int                 `json:"item_count"`
	IntentRef     string              `json:"intent_ref,omitempty"`
	ClientSecret  string              `json:"client_secret,omitempty"`
	Totals
}
