package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

// StockValidationInput pairs a requested line with the stock currently on hand.
type StockValidationInput struct {
	ProductID uuid.UUID
	Title     string
	Available int
	Requested int
}

// StockViolationDetail is returned to callers when a line cannot be reserved.
type StockViolationDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	Title        string    `json:"title,omitempty"`
	AvailableQty int       `json:"available_qty"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateStock ensures every line can be fulfilled from current stock.
func ValidateStock(items []StockValidationInput) error {
	var violations []StockViolationDetail
	for _, item := range items {
		if item.Requested <= item.Available {
			continue
		}
		violations = append(violations, StockViolationDetail{
			ProductID:    item.ProductID,
			Title:        item.Title,
			AvailableQty: item.Available,
			RequestedQty: item.Requested,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// ValidateQuantities rejects non-positive line quantities.
func ValidateQuantities(quantities map[uuid.UUID]int) error {
	for productID, qty := range quantities {
		if qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity for product %s must be positive", productID))
		}
	}
	return nil
}
