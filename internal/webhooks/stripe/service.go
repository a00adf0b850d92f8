package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/revo-backend/internal/payments"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/metrics"
)

// Outcomes reported to metrics beyond the reconciler's own.
const (
	outcomeUnhandled     = "unhandled"
	outcomeUnknownIntent = "unknown_intent"
	outcomePartialRefund = "partial_refund"
	outcomeError         = "error"
)

type reconciler interface {
	ApplyNotification(ctx context.Context, n payments.Notification) (*payments.Result, error)
}

type ServiceParams struct {
	Payments reconciler
	Metrics  *metrics.WebhookMetrics
	Logger   *logger.Logger
}

// Service turns verified Stripe events into payment notifications.
type Service struct {
	payments reconciler
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments: params.Payments,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// HandleEvent applies one event. Unknown intents and unhandled types are
// acknowledged so Stripe stops redelivering them; any other failure is
// returned so the delivery is retried.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": eventType,
	})

	notification, handled, err := notificationFromEvent(event)
	if err != nil {
		s.metrics.IncEvent(eventType, outcomeError)
		return err
	}
	if !handled {
		s.metrics.IncEvent(eventType, outcomeUnhandled)
		s.logg.Debug(ctx, "stripe event ignored")
		return nil
	}
	if notification == nil {
		s.metrics.IncEvent(eventType, outcomePartialRefund)
		s.logg.Info(ctx, "partial refund acknowledged without state change")
		return nil
	}

	result, err := s.payments.ApplyNotification(ctx, *notification)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.metrics.IncEvent(eventType, outcomeUnknownIntent)
			s.logg.Warn(s.logg.WithField(ctx, "intent_ref", notification.IntentRef), "stripe event for unknown payment intent")
			return nil
		}
		s.metrics.IncEvent(eventType, outcomeError)
		return err
	}
	s.metrics.IncEvent(eventType, string(result.Outcome))
	return nil
}

// notificationFromEvent reports handled=false for event types the reconciler
// does not consume. A handled event with a nil notification needs no state
// change.
func notificationFromEvent(event *stripe.Event) (*payments.Notification, bool, error) {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return intentNotification(event, enums.PaymentStatusSucceeded)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return intentNotification(event, enums.PaymentStatusFailed)
	case stripe.EventTypePaymentIntentCanceled:
		return intentNotification(event, enums.PaymentStatusCanceled)
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, true, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge")
		}
		if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
			return nil, true, pkgerrors.New(pkgerrors.CodeValidation, "charge has no payment intent")
		}
		if !charge.Refunded {
			return nil, true, nil
		}
		return &payments.Notification{
			IntentRef:   charge.PaymentIntent.ID,
			Status:      enums.PaymentStatusRefunded,
			AmountCents: charge.AmountRefunded,
			Currency:    string(charge.Currency),
			EventID:     event.ID,
		}, true, nil
	default:
		return nil, false, nil
	}
}

func intentNotification(event *stripe.Event, status enums.PaymentStatus) (*payments.Notification, bool, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, true, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if intent.ID == "" {
		return nil, true, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return &payments.Notification{
		IntentRef:   intent.ID,
		Status:      status,
		AmountCents: intent.Amount,
		Currency:    string(intent.Currency),
		EventID:     event.ID,
	}, true, nil
}
