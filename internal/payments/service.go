// Package payments reconciles gateway-reported payment outcomes with order
// state. Every notification is keyed by the immutable intent ref and applied
// under the order's row lock, so redeliveries and out-of-order events settle
// to the same result.
package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/internal/orders"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/revo-backend/pkg/stripe"
)

// Outcome reports what a notification did.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoop    Outcome = "noop"
	OutcomeIgnored Outcome = "ignored"
)

// Notification is a payment outcome reported by the gateway or the client.
type Notification struct {
	IntentRef   string
	Status      enums.PaymentStatus
	AmountCents int64
	Currency    string
	// EventID is the gateway event id, empty for client-reported syncs.
	EventID string
}

// Result describes the state after a notification was applied.
type Result struct {
	Outcome       Outcome             `json:"outcome"`
	OrderID       uuid.UUID           `json:"order_id"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

// Service applies payment notifications.
type Service interface {
	ApplyNotification(ctx context.Context, n Notification) (*Result, error)
	SyncIntent(ctx context.Context, userID, orderID uuid.UUID) (*Result, error)
}

type service struct {
	repo    orders.Repository
	tx      db.TxRunner
	gateway stripe.PaymentGateway
	outbox  outbox.Emitter
	ledger  ledger.Service
	logg    *logger.Logger
}

func NewService(repo orders.Repository, tx db.TxRunner, gateway stripe.PaymentGateway, emitter outbox.Emitter, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, gateway: gateway, outbox: emitter, ledger: ledgerSvc, logg: logg}, nil
}

// transition is the order-level effect of one notification.
type transition struct {
	outcome Outcome
	to      enums.OrderStatus
	event   enums.OutboxEventType
	ledger  enums.LedgerEventType
}

// decide maps (reported payment status, current order status) to the order
// transition. rowChanged tells whether the payment row itself moved, which
// decides between applied and noop for statuses that leave the order alone.
func decide(reported enums.PaymentStatus, order enums.OrderStatus, rowChanged bool) transition {
	if order == enums.OrderStatusRefunded {
		return transition{outcome: OutcomeNoop, to: order}
	}
	switch reported {
	case enums.PaymentStatusSucceeded:
		if order == enums.OrderStatusPending {
			return transition{outcome: OutcomeApplied, to: enums.OrderStatusPaid, event: enums.EventOrderPaid, ledger: enums.LedgerEventPaymentSucceeded}
		}
		return transition{outcome: OutcomeNoop, to: order}
	case enums.PaymentStatusRefunded:
		if order.IsSettled() {
			return transition{outcome: OutcomeApplied, to: enums.OrderStatusRefunded, event: enums.EventOrderRefunded, ledger: enums.LedgerEventRefund}
		}
		return transition{outcome: OutcomeIgnored, to: order}
	case enums.PaymentStatusFailed, enums.PaymentStatusCanceled:
		if order == enums.OrderStatusPending && rowChanged {
			return transition{outcome: OutcomeApplied, to: order, event: enums.EventPaymentFailed, ledger: enums.LedgerEventPaymentFailed}
		}
		return transition{outcome: OutcomeNoop, to: order}
	default:
		if rowChanged {
			return transition{outcome: OutcomeApplied, to: order}
		}
		return transition{outcome: OutcomeNoop, to: order}
	}
}

// paymentRowAdvances reports whether the stored payment status may move to
// next. A settled success only moves to refunded and a refund never moves.
func paymentRowAdvances(current, next enums.PaymentStatus) bool {
	if current == next {
		return false
	}
	switch current {
	case enums.PaymentStatusRefunded:
		return false
	case enums.PaymentStatusSucceeded:
		return next == enums.PaymentStatusRefunded
	default:
		return true
	}
}

func (s *service) ApplyNotification(ctx context.Context, n Notification) (*Result, error) {
	n.IntentRef = strings.TrimSpace(n.IntentRef)
	if n.IntentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent ref is required")
	}
	if !n.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", n.Status))
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.findPayment(ctx, repo, n.IntentRef)
		if err != nil {
			return err
		}
		order, err := repo.LockByID(ctx, payment.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		// Re-read under the order lock; a concurrent notification may have
		// moved the row since the first read.
		payment, err = s.findPayment(ctx, repo, n.IntentRef)
		if err != nil {
			return err
		}

		rowChanged := paymentRowAdvances(payment.Status, n.Status)
		tr := decide(n.Status, order.Status, rowChanged)
		// Ignored notifications and refunded orders leave every row alone.
		if tr.outcome == OutcomeIgnored || order.Status == enums.OrderStatusRefunded {
			rowChanged = false
		}
		if rowChanged {
			if err := repo.UpdatePaymentStatus(ctx, payment.ID, n.Status); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
			}
			payment.Status = n.Status
		}
		if tr.to != order.Status {
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": tr.to}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
		}
		if tr.event != "" {
			if err := s.record(ctx, tx, order, payment, n, tr); err != nil {
				return err
			}
		}

		result = &Result{Outcome: tr.outcome, OrderID: order.ID, OrderStatus: tr.to, PaymentStatus: payment.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":        result.OrderID.String(),
		"intent_ref":      n.IntentRef,
		"reported_status": n.Status,
		"outcome":         result.Outcome,
		"event_id":        n.EventID,
	})
	switch result.Outcome {
	case OutcomeIgnored:
		s.logg.Warn(logCtx, "payment notification ignored for order state")
	case OutcomeNoop:
		s.logg.Info(logCtx, "payment notification already applied")
	default:
		s.logg.Info(logCtx, "payment notification applied")
	}
	return result, nil
}

// SyncIntent pulls the latest intent of the caller's order from the gateway
// and applies it like a webhook would.
func (s *service) SyncIntent(ctx context.Context, userID, orderID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
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
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	payment, err := s.repo.LatestPayment(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment to sync")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	intent, err := s.gateway.RetrieveIntent(ctx, payment.IntentRef)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "retrieve payment intent")
	}
	return s.ApplyNotification(ctx, Notification{
		IntentRef:   payment.IntentRef,
		Status:      intent.Status,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
	})
}

func (s *service) findPayment(ctx context.Context, repo orders.Repository, ref string) (*models.Payment, error) {
	payment, err := repo.FindPaymentByIntentRef(ctx, ref)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found").
				WithDetails(map[string]any{"intent_ref": ref})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, n Notification, tr transition) error {
	amount := n.AmountCents
	if amount <= 0 {
		amount = payment.AmountCents
	}
	currency := n.Currency
	if currency == "" {
		currency = payment.Currency
	}

	metadata := map[string]any{"intent_ref": payment.IntentRef, "from": order.Status, "to": tr.to}
	if n.EventID != "" {
		metadata["gateway_event_id"] = n.EventID
	}
	if _, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Type:          tr.ledger,
		AmountCents:   amount,
		Metadata:      metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger event")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     tr.event,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.PaymentStatusEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			IntentRef:     payment.IntentRef,
			PaymentStatus: n.Status,
			OrderStatus:   tr.to,
			AmountCents:   amount,
			Currency:      currency,
			GatewayEvent:  n.EventID,
		},
	})
}
