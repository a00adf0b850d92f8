package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/internal/orders"
	"github.com/angelmondragon/revo-backend/internal/tradein"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	KindOrder   = "order"
	KindTradeIn = "tradein"
)

type orderLister interface {
	ListMine(ctx context.Context, userID uuid.UUID) ([]orders.OrderSummary, error)
}

type pickupLister interface {
	ListMine(ctx context.Context, userID uuid.UUID) ([]tradein.PickupView, error)
}

// Entry is one row of the combined timeline.
type Entry struct {
	Kind       string                 `json:"type"`
	ID         uuid.UUID              `json:"id"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	Reference  string                 `json:"reference,omitempty"`
	TotalCents *int64                 `json:"total_cents,omitempty"`
	ModelText  string                 `json:"model_text,omitempty"`
	BrandName  *string                `json:"brand_name,omitempty"`
	Condition  *enums.DeviceCondition `json:"condition,omitempty"`
}

// Items is the user's purchase and trade-in history.
type Items struct {
	Orders         []orders.OrderSummary `json:"orders"`
	PickupRequests []tradein.PickupView  `json:"pickup_requests"`
	TotalOrders    int                   `json:"total_orders"`
	TotalTradeIns  int                   `json:"total_tradeins"`
	AllItems       []Entry               `json:"all_items"`
}

type Service struct {
	orders  orderLister
	pickups pickupLister
}

func NewService(orderSvc orderLister, pickupSvc pickupLister) (*Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if pickupSvc == nil {
		return nil, fmt.Errorf("trade-in service required")
	}
	return &Service{orders: orderSvc, pickups: pickupSvc}, nil
}

// MyItems returns the newest limit orders and pickups plus a merged timeline
// of at most limit entries.
func (s *Service) MyItems(ctx context.Context, userID uuid.UUID, limit int) (*Items, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	orderRows, err := s.orders.ListMine(ctx, userID)
	if err != nil {
		return nil, err
	}
	pickupRows, err := s.pickups.ListMine(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orderRows) > limit {
		orderRows = orderRows[:limit]
	}
	if len(pickupRows) > limit {
		pickupRows = pickupRows[:limit]
	}

	all := make([]Entry, 0, len(orderRows)+len(pickupRows))
	for _, o := range orderRows {
		total := o.TotalCents
		all = append(all, Entry{
			Kind:       KindOrder,
			ID:         o.ID,
			Status:     string(o.Status),
			CreatedAt:  o.CreatedAt,
			Reference:  o.Reference,
			TotalCents: &total,
		})
	}
	for _, p := range pickupRows {
		condition := p.Condition
		all = append(all, Entry{
			Kind:      KindTradeIn,
			ID:        p.ID,
			Status:    string(p.Status),
			CreatedAt: p.CreatedAt,
			ModelText: p.ModelText,
			BrandName: p.BrandName,
			Condition: &condition,
		})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}

	return &Items{
		Orders:         orderRows,
		PickupRequests: pickupRows,
		TotalOrders:    len(orderRows),
		TotalTradeIns:  len(pickupRows),
		AllItems:       all,
	}, nil
}
