package payments

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/internal/orders"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/stripe"
)

type stubGateway struct {
	intent stripe.IntentResult
	err    error
	refs   []string
}

func (g *stubGateway) CreateIntent(context.Context, stripe.IntentRequest) (stripe.IntentResult, error) {
	return stripe.IntentResult{}, errors.New("not implemented")
}

func (g *stubGateway) RetrieveIntent(_ context.Context, ref string) (stripe.IntentResult, error) {
	g.refs = append(g.refs, ref)
	if g.err != nil {
		return stripe.IntentResult{}, g.err
	}
	return g.intent, nil
}

type fixture struct {
	conn    *gorm.DB
	svc     Service
	gateway *stubGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	gateway := &stubGateway{}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(
		orders.NewRepository(conn),
		db.FromConn(conn),
		gateway,
		outbox.NewService(outbox.NewRepository(conn), nil),
		ledgerSvc,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, gateway: gateway}
}

func (f *fixture) order(t *testing.T, status enums.OrderStatus, paymentStatus enums.PaymentStatus) (models.Order, string) {
	t.Helper()
	repo := orders.NewRepository(f.conn)
	order := models.Order{
		UserID:        uuid.New(),
		Status:        status,
		SubtotalCents: 5000,
		TotalCents:    5000,
		Currency:      "usd",
		PaymentMethod: enums.PaymentMethodCard,
		Source:        enums.OrderSourceCart,
	}
	_, err := repo.CreateOrder(context.Background(), &order)
	require.NoError(t, err)
	ref := "pi_" + uuid.NewString()[:12]
	_, err = repo.CreatePayment(context.Background(), &models.Payment{
		OrderID: order.ID, Provider: stripe.ProviderName, IntentRef: ref,
		AmountCents: 5000, Currency: "usd", Status: paymentStatus,
	})
	require.NoError(t, err)
	return order, ref
}

func (f *fixture) state(t *testing.T, orderID uuid.UUID, ref string) (enums.OrderStatus, enums.PaymentStatus) {
	t.Helper()
	repo := orders.NewRepository(f.conn)
	order, err := repo.FindByID(context.Background(), orderID)
	require.NoError(t, err)
	payment, err := repo.FindPaymentByIntentRef(context.Background(), ref)
	require.NoError(t, err)
	return order.Status, payment.Status
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestDuplicateSucceededTransitionsOnce(t *testing.T) {
	f := newFixture(t)
	order, ref := f.order(t, enums.OrderStatusPending, enums.PaymentStatusRequiresPayment)

	first, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: enums.PaymentStatusSucceeded, EventID: "evt_1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, first.Outcome)
	assert.Equal(t, enums.OrderStatusPaid, first.OrderStatus)

	second, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: enums.PaymentStatusSucceeded, EventID: "evt_2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, second.Outcome)

	orderStatus, paymentStatus := f.state(t, order.ID, ref)
	assert.Equal(t, enums.OrderStatusPaid, orderStatus)
	assert.Equal(t, enums.PaymentStatusSucceeded, paymentStatus)
	assert.EqualValues(t, 1, f.events(t, enums.EventOrderPaid))

	var ledgerRows int64
	require.NoError(t, f.conn.Model(&models.LedgerEvent{}).Where("type = ?", enums.LedgerEventPaymentSucceeded).Count(&ledgerRows).Error)
	assert.EqualValues(t, 1, ledgerRows)
}

func TestRefundRequiresSettledOrder(t *testing.T) {
	f := newFixture(t)

	pending, pendingRef := f.order(t, enums.OrderStatusPending, enums.PaymentStatusRequiresPayment)
	res, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: pendingRef, Status: enums.PaymentStatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	orderStatus, paymentStatus := f.state(t, pending.ID, pendingRef)
	assert.Equal(t, enums.OrderStatusPending, orderStatus)
	assert.Equal(t, enums.PaymentStatusRequiresPayment, paymentStatus)

	for _, status := range []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusShipped, enums.OrderStatusCompleted} {
		order, ref := f.order(t, status, enums.PaymentStatusSucceeded)
		res, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: enums.PaymentStatusRefunded})
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, res.Outcome, "from %s", status)
		orderStatus, paymentStatus := f.state(t, order.ID, ref)
		assert.Equal(t, enums.OrderStatusRefunded, orderStatus)
		assert.Equal(t, enums.PaymentStatusRefunded, paymentStatus)
	}
	assert.EqualValues(t, 3, f.events(t, enums.EventOrderRefunded))
}

func TestRefundedOrderAbsorbsEverything(t *testing.T) {
	f := newFixture(t)
	order, ref := f.order(t, enums.OrderStatusRefunded, enums.PaymentStatusRefunded)

	for _, status := range []enums.PaymentStatus{enums.PaymentStatusSucceeded, enums.PaymentStatusFailed, enums.PaymentStatusRefunded} {
		res, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: status})
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoop, res.Outcome)
	}
	orderStatus, paymentStatus := f.state(t, order.ID, ref)
	assert.Equal(t, enums.OrderStatusRefunded, orderStatus)
	assert.Equal(t, enums.PaymentStatusRefunded, paymentStatus)
}

func TestFailedThenSucceeded(t *testing.T) {
	f := newFixture(t)
	order, ref := f.order(t, enums.OrderStatusPending, enums.PaymentStatusRequiresPayment)

	res, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: enums.PaymentStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, enums.OrderStatusPending, res.OrderStatus)
	assert.EqualValues(t, 1, f.events(t, enums.EventPaymentFailed))

	res, err = f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: enums.PaymentStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.EqualValues(t, 1, f.events(t, enums.EventPaymentFailed))

	res, err = f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: enums.PaymentStatusSucceeded})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	orderStatus, _ := f.state(t, order.ID, ref)
	assert.Equal(t, enums.OrderStatusPaid, orderStatus)
}

func TestLateFailureDoesNotRegressSuccess(t *testing.T) {
	f := newFixture(t)
	order, ref := f.order(t, enums.OrderStatusPaid, enums.PaymentStatusSucceeded)

	res, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: ref, Status: enums.PaymentStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	orderStatus, paymentStatus := f.state(t, order.ID, ref)
	assert.Equal(t, enums.OrderStatusPaid, orderStatus)
	assert.Equal(t, enums.PaymentStatusSucceeded, paymentStatus)
}

func TestApplyNotificationUnknownIntent(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplyNotification(context.Background(), Notification{IntentRef: "pi_missing", Status: enums.PaymentStatusSucceeded})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.ApplyNotification(context.Background(), Notification{IntentRef: "pi_x", Status: "bogus"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSyncIntent(t *testing.T) {
	f := newFixture(t)
	order, ref := f.order(t, enums.OrderStatusPending, enums.PaymentStatusRequiresPayment)
	f.gateway.intent = stripe.IntentResult{Ref: ref, Status: enums.PaymentStatusSucceeded, AmountCents: 5000, Currency: "usd"}

	_, err := f.svc.SyncIntent(context.Background(), uuid.New(), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Empty(t, f.gateway.refs)

	res, err := f.svc.SyncIntent(context.Background(), order.UserID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, enums.OrderStatusPaid, res.OrderStatus)
	assert.Equal(t, []string{ref}, f.gateway.refs)

	f.gateway.err = errors.New("timeout")
	_, err = f.svc.SyncIntent(context.Background(), order.UserID, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstream))
}

func TestSyncIntentWithoutPayment(t *testing.T) {
	f := newFixture(t)
	order := models.Order{
		UserID: uuid.New(), Status: enums.OrderStatusPending, Currency: "usd",
		PaymentMethod: enums.PaymentMethodCOD, Source: enums.OrderSourceExplicit,
	}
	_, err := orders.NewRepository(f.conn).CreateOrder(context.Background(), &order)
	require.NoError(t, err)

	_, err = f.svc.SyncIntent(context.Background(), order.UserID, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestDecideTable(t *testing.T) {
	cases := []struct {
		reported enums.PaymentStatus
		order    enums.OrderStatus
		changed  bool
		outcome  Outcome
		to       enums.OrderStatus
	}{
		{enums.PaymentStatusSucceeded, enums.OrderStatusPending, true, OutcomeApplied, enums.OrderStatusPaid},
		{enums.PaymentStatusSucceeded, enums.OrderStatusShipped, true, OutcomeNoop, enums.OrderStatusShipped},
		{enums.PaymentStatusCanceled, enums.OrderStatusPending, true, OutcomeApplied, enums.OrderStatusPending},
		{enums.PaymentStatusRefunded, enums.OrderStatusCompleted, true, OutcomeApplied, enums.OrderStatusRefunded},
		{enums.PaymentStatusRefunded, enums.OrderStatusPending, true, OutcomeIgnored, enums.OrderStatusPending},
		{enums.PaymentStatusProcessing, enums.OrderStatusPending, true, OutcomeApplied, enums.OrderStatusPending},
		{enums.PaymentStatusProcessing, enums.OrderStatusPending, false, OutcomeNoop, enums.OrderStatusPending},
		{enums.PaymentStatusSucceeded, enums.OrderStatusRefunded, true, OutcomeNoop, enums.OrderStatusRefunded},
	}
	for _, tc := range cases {
		got := decide(tc.reported, tc.order, tc.changed)
		if got.outcome != tc.outcome || got.to != tc.to {
			t.Fatalf("%s on %s: expected %s/%s got %s/%s", tc.reported, tc.order, tc.outcome, tc.to, got.outcome, got.to)
		}
	}
}
