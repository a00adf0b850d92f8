package orders

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
)

// ItemView is one frozen order line.
type ItemView struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// PaymentView exposes a payment row without gateway secrets.
type PaymentView struct {
	ID          uuid.UUID           `json:"id"`
	Provider    string              `json:"provider"`
	IntentRef   string              `json:"intent_ref"`
	AmountCents int64               `json:"amount_cents"`
	Currency    string              `json:"currency"`
	Status      enums.PaymentStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// OrderSummary is the list shape returned to the order owner.
type OrderSummary struct {
	ID            uuid.UUID            `json:"id"`
	Reference     string               `json:"reference"`
	Status        enums.OrderStatus    `json:"status"`
	TotalCents    int64                `json:"total_cents"`
	Currency      string               `json:"currency"`
	PaymentMethod enums.PaymentMethod  `json:"payment_method"`
	ItemCount     int                  `json:"item_count"`
	PaymentStatus *enums.PaymentStatus `json:"payment_status,omitempty"`
	LatestPayment *PaymentView         `json:"latest_payment,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// OrderDetail is the full order snapshot.
type OrderDetail struct {
	ID               uuid.UUID            `json:"id"`
	Reference        string               `json:"reference"`
	UserID           uuid.UUID            `json:"user_id"`
	Status           enums.OrderStatus    `json:"status"`
	SubtotalCents    int64                `json:"subtotal_cents"`
	TaxCents         int64                `json:"tax_cents"`
	ShippingFeeCents int64                `json:"shipping_fee_cents"`
	TotalCents       int64                `json:"total_cents"`
	Currency         string               `json:"currency"`
	PaymentMethod    enums.PaymentMethod  `json:"payment_method"`
	Source           enums.OrderSource    `json:"source"`
	ShippingAddress  json.RawMessage      `json:"shipping_address,omitempty"`
	Notes            *string              `json:"notes,omitempty"`
	Items            []ItemView           `json:"items"`
	Payments         []PaymentView        `json:"payments"`
	PaymentStatus    *enums.PaymentStatus `json:"payment_status,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDetail `json:"orders"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Reference renders the customer-facing order number.
func Reference(id uuid.UUID) string {
	return "ORD" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// EffectivePaymentStatus is the status of the most recent terminal payment,
// falling back to the most recent payment when none has settled.
func EffectivePaymentStatus(payments []models.Payment) *enums.PaymentStatus {
	var latest, latestTerminal *models.Payment
	for i := range payments {
		p := &payments[i]
		if latest == nil || newer(p, latest) {
			latest = p
		}
		if p.Status.IsTerminal() && (latestTerminal == nil || newer(p, latestTerminal)) {
			latestTerminal = p
		}
	}
	if latestTerminal != nil {
		status := latestTerminal.Status
		return &status
	}
	if latest != nil {
		status := latest.Status
		return &status
	}
	return nil
}

func newer(a, b *models.Payment) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() > b.ID.String()
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func latestPayment(payments []models.Payment) *models.Payment {
	var latest *models.Payment
	for i := range payments {
		if latest == nil || newer(&payments[i], latest) {
			latest = &payments[i]
		}
	}
	return latest
}

func toPaymentView(p models.Payment) PaymentView {
	return PaymentView{
		ID:          p.ID,
		Provider:    p.Provider,
		IntentRef:   p.IntentRef,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toSummary(order models.Order) OrderSummary {
	summary := OrderSummary{
		ID:            order.ID,
		Reference:     Reference(order.ID),
		Status:        order.Status,
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: EffectivePaymentStatus(order.Payments),
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		summary.ItemCount += item.Qty
	}
	if latest := latestPayment(order.Payments); latest != nil {
		view := toPaymentView(*latest)
		summary.LatestPayment = &view
	}
	return summary
}

// ToDetail maps a loaded order (items and payments preloaded) to its view.
func ToDetail(order models.Order) OrderDetail {
	detail := OrderDetail{
		ID:               order.ID,
		Reference:        Reference(order.ID),
		UserID:           order.UserID,
		Status:           order.Status,
		SubtotalCents:    order.SubtotalCents,
		TaxCents:         order.TaxCents,
		ShippingFeeCents: order.ShippingFeeCents,
		TotalCents:       order.TotalCents,
		Currency:         order.Currency,
		PaymentMethod:    order.PaymentMethod,
		Source:           order.Source,
		Notes:            order.Notes,
		Items:            make([]ItemView, 0, len(order.Items)),
		Payments:         make([]PaymentView, 0, len(order.Payments)),
		PaymentStatus:    EffectivePaymentStatus(order.Payments),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	if len(order.ShippingAddress) > 0 {
		detail.ShippingAddress = json.RawMessage(order.ShippingAddress)
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, ItemView{
			ProductID:      item.ProductID,
			Title:          item.TitleSnapshot,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			LineTotalCents: item.LineTotalCents,
		})
	}
	for _, p := range order.Payments {
		detail.Payments = append(detail.Payments, toPaymentView(p))
	}
	return detail
}
