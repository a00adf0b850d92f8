package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.LedgerEvent) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.LedgerEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByAggregate(context.Context, enums.OutboxAggregateType, uuid.UUID) ([]models.LedgerEvent, error) {
	return nil, nil
}

func TestService_RecordEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.LedgerEvent
	repo.createFn = func(ctx context.Context, event *models.LedgerEvent) error {
		created = event
		return nil
	}

	orderID := uuid.New()
	got, err := svc.RecordEvent(context.Background(), RecordLedgerEventInput{
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Type:          enums.LedgerEventPaymentSucceeded,
		AmountCents:   2163,
		Metadata:      map[string]any{"intent_ref": "pi_1"},
	})
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if got != created {
		t.Fatalf("expected returned event to be the persisted one")
	}
	if created.AggregateID != orderID || created.AmountCents != 2163 || created.ActorUserID != nil {
		t.Fatalf("unexpected event %+v", created)
	}
	var meta map[string]string
	if err := json.Unmarshal(created.Metadata, &meta); err != nil || meta["intent_ref"] != "pi_1" {
		t.Fatalf("metadata not encoded: %s err=%v", created.Metadata, err)
	}
}

func TestService_RecordEventValidation(t *testing.T) {
	svc, _ := NewService(&fakeRepository{})
	empty := uuid.Nil
	cases := map[string]RecordLedgerEventInput{
		"aggregate type": {AggregateType: "store", AggregateID: uuid.New(), Type: enums.LedgerEventRefund},
		"aggregate id":   {AggregateType: enums.AggregateOrder, Type: enums.LedgerEventRefund},
		"actor":          {AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), ActorUserID: &empty, Type: enums.LedgerEventRefund},
		"type":           {AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Type: "cash_collected"},
	}
	for name, input := range cases {
		if _, err := svc.RecordEvent(context.Background(), input); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestService_RecordEventRepoError(t *testing.T) {
	boom := errors.New("db down")
	svc, _ := NewService(&fakeRepository{createFn: func(context.Context, *models.LedgerEvent) error { return boom }})
	_, err := svc.RecordEvent(context.Background(), RecordLedgerEventInput{
		AggregateType: enums.AggregatePickup,
		AggregateID:   uuid.New(),
		Type:          enums.LedgerEventPickupSubmitted,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected repo error, got %v", err)
	}
}

func TestNewServiceRequiresRepo(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}

func TestService_HistoryAgainstDatabase(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	ctx := context.Background()
	pickupID := uuid.New()
	evaluator := uuid.New()

	err = conn.Transaction(func(tx *gorm.DB) error {
		txSvc := svc.WithTx(tx)
		if _, err := txSvc.RecordEvent(ctx, RecordLedgerEventInput{
			AggregateType: enums.AggregatePickup,
			AggregateID:   pickupID,
			Type:          enums.LedgerEventPickupSubmitted,
		}); err != nil {
			return err
		}
		_, err := txSvc.RecordEvent(ctx, RecordLedgerEventInput{
			AggregateType: enums.AggregatePickup,
			AggregateID:   pickupID,
			ActorUserID:   &evaluator,
			Type:          enums.LedgerEventPickupEvaluated,
			AmountCents:   25000,
		})
		return err
	})
	require.NoError(t, err)

	history, err := svc.History(ctx, enums.AggregatePickup, pickupID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[1].ActorUserID)
	assert.Equal(t, evaluator, *history[1].ActorUserID)

	has, err := svc.HasEvent(ctx, enums.AggregatePickup, pickupID, enums.LedgerEventPickupEvaluated)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasEvent(ctx, enums.AggregatePickup, pickupID, enums.LedgerEventOfferAccepted)
	require.NoError(t, err)
	assert.False(t, has)

	other, err := svc.History(ctx, enums.AggregateOrder, pickupID)
	require.NoError(t, err)
	assert.Empty(t, other)
}
