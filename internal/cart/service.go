package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/catalog"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

// Service exposes cart operations for the owning user.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*View, error)
	SetItemQty(ctx context.Context, userID, productID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	Count(ctx context.Context, userID uuid.UUID) (*CountView, error)
}

type service struct {
	repo     Repository
	catalog  catalog.Repository
	tx       db.TxRunner
	currency string
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, catalogRepo catalog.Repository, tx db.TxRunner, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, catalog: catalogRepo, tx: tx, currency: currency}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return &View{Items: []LineView{}, Currency: s.currency}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.FindActiveProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	lines, subtotal := PriceLines(cart.Items, products)
	cartID := cart.ID
	return &View{CartID: &cartID, Items: lines, SubtotalCents: subtotal, Currency: s.currency}, nil
}

// AddItem merges qty into the existing line. Quantities below one count as one.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*View, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}
	if qty < 1 {
		qty = 1
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ensureProduct(ctx, tx, productID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		merged := qty
		for _, item := range cart.Items {
			if item.ProductID == productID {
				merged += item.Qty
				break
			}
		}
		return s.saveLine(ctx, repo, cart.ID, productID, merged)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// SetItemQty overwrites the line quantity; qty <= 0 deletes the line.
func (s *service) SetItemQty(ctx context.Context, userID, productID uuid.UUID, qty int) (*View, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockExisting(ctx, repo, userID)
		if err != nil {
			return err
		}
		if _, err := repo.FindItem(ctx, cart.ID, productID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		return s.saveLine(ctx, repo, cart.ID, productID, qty)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	if err := validateIDs(userID, productID); err != nil {
		return nil, err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.lockExisting(ctx, repo, userID)
		if err != nil {
			return err
		}
		deleted, err := repo.DeleteItem(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// Count reports distinct lines and total units without pricing.
func (s *service) Count(ctx context.Context, userID uuid.UUID) (*CountView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return &CountView{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	view := &CountView{Count: len(cart.Items)}
	for _, item := range cart.Items {
		view.TotalItems += item.Qty
	}
	return view, nil
}

// lockExisting locks the user's cart; a missing cart means the line cannot exist.
func (s *service) lockExisting(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.LockByUser(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
	}
	return cart, nil
}

func (s *service) ensureProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	product, err := s.catalog.WithTx(tx).FindProduct(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) saveLine(ctx context.Context, repo Repository, cartID, productID uuid.UUID, qty int) error {
	if err := repo.SaveItem(ctx, &models.CartItem{CartID: cartID, ProductID: productID, Qty: qty}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return nil
}

func validateIDs(userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return nil
}
