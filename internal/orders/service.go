package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/revo-backend/pkg/pagination"
)

const maxNotesLen = 2000

// Service defines order reads for owners and admin fulfilment edits.
type Service interface {
	ListMine(ctx context.Context, userID uuid.UUID) ([]OrderSummary, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDetail, error)
	AdminList(ctx context.Context, params AdminListParams) (*OrderList, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDetail, error)
}

// AdminListParams filters the admin order list.
type AdminListParams struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
	pagination.Params
}

// UpdateStatusInput carries an admin edit. At least one of Status and Notes
// must be set; a nil Notes leaves the stored notes untouched.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
	Status      *enums.OrderStatus
	Notes       *string
}

type service struct {
	repo   Repository
	tx     db.TxRunner
	outbox outbox.Emitter
	ledger ledger.Service
}

// NewService builds the orders service with the required dependencies.
func NewService(repo Repository, tx db.TxRunner, emitter outbox.Emitter, ledgerSvc ledger.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, ledger: ledgerSvc}, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]OrderSummary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSummary(row))
	}
	return out, nil
}

// Get returns the order only to its owner; other users see NotFound.
func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDetail, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	detail := ToDetail(*order)
	return &detail, nil
}

func (s *service) AdminList(ctx context.Context, params AdminListParams) (*OrderList, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{Status: params.Status, UserID: params.UserID}, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	list := &OrderList{Orders: make([]OrderDetail, 0, len(page)), NextCursor: next}
	for _, row := range page {
		list.Orders = append(list.Orders, ToDetail(row))
	}
	return list, nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	detail := ToDetail(*order)
	return &detail, nil
}

// UpdateStatus applies an admin fulfilment move. Paid and refunded are
// reserved for payment events; any other forward move is allowed.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDetail, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Status == nil && input.Notes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status or notes is required")
	}
	if input.Status != nil {
		switch *input.Status {
		case enums.OrderStatusShipped, enums.OrderStatusCompleted:
		default:
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be shipped or completed").
				WithDetails(map[string]any{"status": input.Status})
		}
	}
	var notes *string
	if input.Notes != nil {
		trimmed := strings.TrimSpace(*input.Notes)
		if len(trimmed) > maxNotesLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLen))
		}
		notes = &trimmed
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		updates := map[string]any{}
		if notes != nil {
			if *notes == "" {
				updates["notes"] = nil
			} else {
				updates["notes"] = *notes
			}
		}

		from := order.Status
		moving := input.Status != nil && *input.Status != from
		if moving {
			if !from.CanAdvanceTo(*input.Status) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order status cannot move backwards").
					WithDetails(map[string]any{"from": from, "to": *input.Status})
			}
			updates["status"] = *input.Status
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moving {
			return nil
		}

		to := *input.Status
		actor := input.ActorUserID
		if _, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			ActorUserID:   &actor,
			Type:          enums.LedgerEventOrderStatusChanged,
			AmountCents:   order.TotalCents,
			Metadata:      map[string]any{"from": from, "to": to},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger event")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    from,
				To:      to,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, input.OrderID)
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
