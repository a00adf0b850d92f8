package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/revo-backend/pkg/config"
	"github.com/angelmondragon/revo-backend/pkg/money"
)

// Pricing is the tax and shipping policy applied to new orders.
type Pricing struct {
	Currency                   string
	TaxRate                    decimal.Decimal
	ShippingFeeCents           int64
	FreeShippingThresholdCents int64
}

// PricingFromConfig parses the checkout section of the app config.
func PricingFromConfig(cfg config.CheckoutConfig) (Pricing, error) {
	rate, err := cfg.TaxRateDecimal()
	if err != nil {
		return Pricing{}, err
	}
	return Pricing{
		Currency:                   cfg.Currency,
		TaxRate:                    rate,
		ShippingFeeCents:           cfg.ShippingFeeCents,
		FreeShippingThresholdCents: cfg.FreeShippingThresholdCents,
	}, nil
}

// Totals are the money columns of an order.
type Totals struct {
	SubtotalCents    int64 `json:"subtotal_cents"`
	TaxCents         int64 `json:"tax_cents"`
	ShippingFeeCents int64 `json:"shipping_fee_cents"`
	TotalCents       int64 `json:"total_cents"`
}

// Compute applies tax on the subtotal, rounded half-up to the cent, and the
// flat shipping fee unless the subtotal reaches the free-shipping threshold.
func (p Pricing) Compute(subtotalCents int64) Totals {
	shipping := p.ShippingFeeCents
	if shipping < 0 {
		shipping = 0
	}
	if p.FreeShippingThresholdCents > 0 && subtotalCents >= p.FreeShippingThresholdCents {
		shipping = 0
	}
	tax := money.PercentOf(subtotalCents, p.TaxRate)
	return Totals{
		SubtotalCents:    subtotalCents,
		TaxCents:         tax,
		ShippingFeeCents: shipping,
		TotalCents:       subtotalCents + tax + shipping,
	}
}
