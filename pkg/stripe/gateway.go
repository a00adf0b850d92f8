package stripe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

// ProviderName is recorded on payment rows created through this gateway.
const ProviderName = "stripe"

const defaultGatewayTimeout = 10 * time.Second

// IntentRequest describes a payment intent to open for an order.
type IntentRequest struct {
	OrderID     uuid.UUID
	UserID      uuid.UUID
	AmountCents int64
	Currency    string
	Description string
}

// IntentResult is the gateway's view of a payment intent.
type IntentResult struct {
	Ref          string
	ClientSecret string
	Status       enums.PaymentStatus
	AmountCents  int64
	Currency     string
}

// PaymentGateway opens and inspects payment intents.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResult, error)
	RetrieveIntent(ctx context.Context, ref string) (IntentResult, error)
}

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type packageIntentAPI struct{}

func (packageIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (packageIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

// Gateway implements PaymentGateway against Stripe PaymentIntents. Every call
// is bounded by the configured timeout.
type Gateway struct {
	api     intentAPI
	timeout time.Duration
}

// NewGateway requires an initialized Client so stripe.Key is set.
func NewGateway(client *Client, timeout time.Duration) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return newGateway(packageIntentAPI{}, timeout), nil
}

func newGateway(api intentAPI, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &Gateway{api: api, timeout: timeout}
}

func (g *Gateway) CreateIntent(ctx context.Context, req IntentRequest) (IntentResult, error) {
	if req.AmountCents <= 0 {
		return IntentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return IntentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("user_id", req.UserID.String())
	// A retried checkout for the same order must not open a second intent.
	params.SetIdempotencyKey("order-intent-" + req.OrderID.String())

	pi, err := g.api.New(params)
	if err != nil {
		return IntentResult{}, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create payment intent")
	}
	return resultFromIntent(pi), nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, ref string) (IntentResult, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return IntentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "intent ref is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.Get(ref, params)
	if err != nil {
		return IntentResult{}, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "retrieve payment intent")
	}
	return resultFromIntent(pi), nil
}

func resultFromIntent(pi *stripe.PaymentIntent) IntentResult {
	if pi == nil {
		return IntentResult{}
	}
	return IntentResult{
		Ref:          pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       MapIntentStatus(pi),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}
}

// MapIntentStatus folds Stripe's intent states into PaymentStatus. An intent
// sent back to requires_payment_method with a recorded error is a failed
// attempt.
func MapIntentStatus(pi *stripe.PaymentIntent) enums.PaymentStatus {
	if pi == nil {
		return enums.PaymentStatusRequiresPayment
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return enums.PaymentStatusCanceled
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return enums.PaymentStatusProcessing
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return enums.PaymentStatusFailed
		}
		return enums.PaymentStatusRequiresPayment
	default:
		return enums.PaymentStatusRequiresPayment
	}
}
