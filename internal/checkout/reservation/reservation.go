// Package reservation decrements catalog stock for the lines of an order
// being created, under row locks held by the checkout transaction.
package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/catalog"
	"github.com/angelmondragon/revo-backend/pkg/checkout"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

// Request asks for Qty units of one product.
type Request struct {
	ProductID uuid.UUID
	Qty       int
}

// Line is a reserved product as it stood when its row was locked.
type Line struct {
	Product models.Product
	Qty     int
}

// Reserver reserves stock through the catalog repository.
type Reserver struct {
	catalog catalog.Repository
}

func NewReserver(repo catalog.Repository) (*Reserver, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	return &Reserver{catalog: repo}, nil
}

// Reserve locks every requested product, checks it is active and stocked and
// decrements its stock, all inside tx. Requests for the same product are
// summed; lines come back in first-seen order.
func (r *Reserver) Reserve(ctx context.Context, tx *gorm.DB, requests []Request) ([]Line, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no items to reserve")
	}

	order := make([]uuid.UUID, 0, len(requests))
	quantities := make(map[uuid.UUID]int, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
		if _, seen := quantities[req.ProductID]; !seen {
			order = append(order, req.ProductID)
		}
		quantities[req.ProductID] += req.Qty
	}
	if err := checkout.ValidateQuantities(quantities); err != nil {
		return nil, err
	}

	repo := r.catalog.WithTx(tx)
	products, err := repo.LockProducts(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
	}

	stock := make([]checkout.StockValidationInput, 0, len(order))
	for _, id := range order {
		product, ok := products[id]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		stock = append(stock, checkout.StockValidationInput{
			ProductID: id,
			Title:     product.Title,
			Available: product.StockQty,
			Requested: quantities[id],
		})
	}
	if err := checkout.ValidateStock(stock); err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(order))
	for _, id := range order {
		ok, err := repo.DecrementStock(ctx, id, quantities[id])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			// The row lock makes this unreachable on postgres.
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock for product %s", id))
		}
		lines = append(lines, Line{Product: products[id], Qty: quantities[id]})
	}
	return lines, nil
}
