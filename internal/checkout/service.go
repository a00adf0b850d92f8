package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/cart"
	"github.com/angelmondragon/revo-backend/internal/catalog"
	"github.com/angelmondragon/revo-backend/internal/checkout/reservation"
	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/internal/orders"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/metrics"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/revo-backend/pkg/stripe"
	"github.com/angelmondragon/revo-backend/pkg/types"
)

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.Request) ([]reservation.Line, error)
}

// Service executes checkout orchestration.
type Service interface {
	CreateOrder(ctx context.Context, input CartCheckoutInput) (*Result, error)
	CreateOrderFromItems(ctx context.Context, input ExplicitCheckoutInput) (*Result, error)
}

// Dependencies wires the checkout service.
type Dependencies struct {
	Tx          db.TxRunner
	Carts       cart.Repository
	Catalog     catalog.Repository
	Orders      orders.Repository
	Reservation reservationRunner
	Gateway     stripe.PaymentGateway
	Outbox      outbox.Emitter
	Ledger      ledger.Service
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
}

type service struct {
	Dependencies
	pricing Pricing
}

// NewService builds the checkout service. A nil Reservation defaults to a
// catalog-backed reserver.
func NewService(deps Dependencies, pricing Pricing) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Reservation == nil {
		reserver, err := reservation.NewReserver(deps.Catalog)
		if err != nil {
			return nil, err
		}
		deps.Reservation = reserver
	}
	if strings.TrimSpace(pricing.Currency) == "" {
		return nil, fmt.Errorf("checkout currency required")
	}
	pricing.Currency = strings.ToLower(strings.TrimSpace(pricing.Currency))
	return &service{Dependencies: deps, pricing: pricing}, nil
}

// placement is the path-specific part of order creation. lines runs first
// inside the transaction and returns what to reserve; settle runs after the
// order rows are written.
type placement struct {
	userID  uuid.UUID
	role    enums.UserRole
	source  enums.OrderSource
	method  enums.PaymentMethod
	address *types.Address
	lines   func(ctx context.Context, tx *gorm.DB) ([]reservation.Request, error)
	settle  func(ctx context.Context, tx *gorm.DB) error
}

// CreateOrder snapshots the caller's cart into a pending order, reserves
// stock, clears the cart and opens a payment intent, all in one transaction.
func (s *service) CreateOrder(ctx context.Context, input CartCheckoutInput) (*Result, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var cartID uuid.UUID
	return s.place(ctx, placement{
		userID:  input.UserID,
		role:    input.ActorRole,
		source:  enums.OrderSourceCart,
		method:  enums.PaymentMethodCard,
		address: input.ShippingAddress,
		lines: func(ctx context.Context, tx *gorm.DB) ([]reservation.Request, error) {
			record, err := s.Carts.WithTx(tx).LockByUser(ctx, input.UserID)
			if err != nil {
				if db.IsNotFound(err) {
					return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "empty cart")
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
			}
			cartID = record.ID

			ids := make([]uuid.UUID, 0, len(record.Items))
			for _, item := range record.Items {
				ids = append(ids, item.ProductID)
			}
			active, err := s.Catalog.WithTx(tx).FindActiveProducts(ctx, ids)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
			}

			// Lines whose product vanished are dropped, matching what the cart shows.
			requests := make([]reservation.Request, 0, len(record.Items))
			for _, item := range record.Items {
				if _, ok := active[item.ProductID]; !ok {
					continue
				}
				requests = append(requests, reservation.Request{ProductID: item.ProductID, Qty: item.Qty})
			}
			if len(requests) == 0 {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "empty cart")
			}
			return requests, nil
		},
		settle: func(ctx context.Context, tx *gorm.DB) error {
			if err := s.Carts.WithTx(tx).ClearItems(ctx, cartID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
			return nil
		},
	})
}

// CreateOrderFromItems creates an order from a client-supplied list. Every
// product is re-read from the catalog; client names, prices and totals are
// not trusted.
func (s *service) CreateOrderFromItems(ctx context.Context, input ExplicitCheckoutInput) (*Result, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCard
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	requests := make([]reservation.Request, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID, "quantity": item.Quantity})
		}
		requests = append(requests, reservation.Request{ProductID: item.ProductID, Qty: item.Quantity})
	}

	result, err := s.place(ctx, placement{
		userID:  input.UserID,
		role:    input.ActorRole,
		source:  enums.OrderSourceExplicit,
		method:  method,
		address: input.ShippingAddress,
		lines: func(context.Context, *gorm.DB) ([]reservation.Request, error) {
			return requests, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if input.ClientTotalCents != nil && *input.ClientTotalCents != result.TotalCents {
		logCtx := s.Logger.WithFields(ctx, map[string]any{
			"order_id":           result.OrderID.String(),
			"client_total_cents": *input.ClientTotalCents,
			"total_cents":        result.TotalCents,
		})
		s.Logger.Warn(logCtx, "client total differs from catalog total")
	}
	return result, nil
}

func (s *service) place(ctx context.Context, p placement) (result *Result, err error) {
	started := time.Now()
	defer func() {
		s.Metrics.Observe(string(p.source), outcomeOf(err), time.Since(started))
	}()

	address, err := encodeAddress(p.address)
	if err != nil {
		return nil, err
	}

	err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		requests, err := p.lines(ctx, tx)
		if err != nil {
			return err
		}
		lines, err := s.Reservation.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}

		items, subtotal, units := snapshot(lines)
		totals := s.pricing.Compute(subtotal)

		ordersRepo := s.Orders.WithTx(tx)
		order, err := ordersRepo.CreateOrder(ctx, &models.Order{
			UserID:           p.userID,
			Status:           enums.OrderStatusPending,
			SubtotalCents:    totals.SubtotalCents,
			TaxCents:         totals.TaxCents,
			ShippingFeeCents: totals.ShippingFeeCents,
			TotalCents:       totals.TotalCents,
			Currency:         s.pricing.Currency,
			PaymentMethod:    p.method,
			Source:           p.source,
			ShippingAddress:  address,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		if p.settle != nil {
			if err := p.settle(ctx, tx); err != nil {
				return err
			}
		}

		result = &Result{
			OrderID:       order.ID,
			Reference:     orders.Reference(order.ID),
			Status:        order.Status,
			PaymentMethod: p.method,
			Currency:      s.pricing.Currency,
			ItemCount:     units,
			Totals:        totals,
		}

		if p.method == enums.PaymentMethodCard {
			if err := s.openIntent(ctx, tx, order, result); err != nil {
				return err
			}
		}
		return s.record(ctx, tx, p, order, result)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.Logger.WithFields(ctx, map[string]any{
		"order_id":    result.OrderID.String(),
		"source":      p.source,
		"total_cents": result.TotalCents,
	})
	s.Logger.Info(logCtx, "order created")
	return result, nil
}

// openIntent is the only outbound call made inside the checkout transaction;
// its failure rolls back the order, the stock decrement and the cart clear.
func (s *service) openIntent(ctx context.Context, tx *gorm.DB, order *models.Order, result *Result) error {
	intent, err := s.Gateway.CreateIntent(ctx, stripe.IntentRequest{
		OrderID:     order.ID,
		UserID:      order.UserID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		Description: "Order " + result.Reference,
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create payment intent")
	}

	status := intent.Status
	if !status.IsValid() {
		status = enums.PaymentStatusRequiresPayment
	}
	if _, err := s.Orders.WithTx(tx).CreatePayment(ctx, &models.Payment{
		OrderID:     order.ID,
		Provider:    stripe.ProviderName,
		IntentRef:   intent.Ref,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		Status:      status,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	result.IntentRef = intent.Ref
	result.ClientSecret = intent.ClientSecret
	return nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, p placement, order *models.Order, result *Result) error {
	actor := p.userID
	if _, err := s.Ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		ActorUserID:   &actor,
		Type:          enums.LedgerEventOrderCreated,
		AmountCents:   order.TotalCents,
		Metadata: map[string]any{
			"source":         p.source,
			"payment_method": p.method,
			"intent_ref":     result.IntentRef,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger event")
	}

	role := p.role
	if role == "" {
		role = enums.UserRoleCustomer
	}
	return s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: p.userID, Role: role},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        p.userID,
			Source:        p.source,
			PaymentMethod: p.method,
			TotalCents:    order.TotalCents,
			Currency:      order.Currency,
			ItemCount:     result.ItemCount,
			IntentRef:     result.IntentRef,
		},
	})
}

// snapshot freezes title and unit price of every reserved line.
func snapshot(lines []reservation.Line) ([]models.OrderItem, int64, int) {
	items := make([]models.OrderItem, 0, len(lines))
	var subtotal int64
	units := 0
	for i, line := range lines {
		unit := line.Product.UnitPriceCents()
		total := unit * int64(line.Qty)
		items = append(items, models.OrderItem{
			ProductID:      line.Product.ID,
			TitleSnapshot:  line.Product.Title,
			UnitPriceCents: unit,
			Qty:            line.Qty,
			LineTotalCents: total,
			Position:       i,
		})
		subtotal += total
		units += line.Qty
	}
	return items, subtotal, units
}

func encodeAddress(address *types.Address) (datatypes.JSON, error) {
	if address == nil || address.IsZero() {
		return nil, nil
	}
	raw, err := json.Marshal(address.Normalize())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	return datatypes.JSON(raw), nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
