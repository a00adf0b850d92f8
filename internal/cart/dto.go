package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/pkg/db/models"
)

// LineView is a cart line priced at the current catalog price.
type LineView struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// View is the priced cart returned to clients.
type View struct {
	CartID        *uuid.UUID `json:"cart_id,omitempty"`
	Items         []LineView `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	Currency      string     `json:"currency"`
}

// CountView backs the cart badge.
type CountView struct {
	Count      int `json:"count"`
	TotalItems int `json:"total_items"`
}

// PriceLines prices cart lines against products. Lines whose product is no
// longer available are skipped.
func PriceLines(items []models.CartItem, products map[uuid.UUID]models.Product) ([]LineView, int64) {
	lines := make([]LineView, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		unit := product.UnitPriceCents()
		line := LineView{
			ProductID:      item.ProductID,
			Title:          product.Title,
			UnitPriceCents: unit,
			Qty:            item.Qty,
			LineTotalCents: unit * int64(item.Qty),
		}
		subtotal += line.LineTotalCents
		lines = append(lines, line)
	}
	return lines, subtotal
}
