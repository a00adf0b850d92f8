package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
)

// Service records the audit trail of order and trade-in transitions.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	History(ctx context.Context, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) ([]models.LedgerEvent, error)
	HasEvent(ctx context.Context, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
// ActorUserID is nil for gateway-driven transitions.
type RecordLedgerEventInput struct {
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	ActorUserID   *uuid.UUID
	Type          enums.LedgerEventType
	AmountCents   int64
	Metadata      map[string]any
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEvent(ctx context.Context, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	if !input.AggregateType.IsValid() {
		return nil, fmt.Errorf("invalid aggregate type %q", input.AggregateType)
	}
	if input.AggregateID == uuid.Nil {
		return nil, fmt.Errorf("aggregate id is required")
	}
	if input.ActorUserID != nil && *input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id must not be empty when set")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}

	var metadata datatypes.JSON
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode ledger metadata: %w", err)
		}
		metadata = datatypes.JSON(raw)
	}

	event := &models.LedgerEvent{
		AggregateType: input.AggregateType,
		AggregateID:   input.AggregateID,
		ActorUserID:   input.ActorUserID,
		Type:          input.Type,
		AmountCents:   input.AmountCents,
		Metadata:      metadata,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) History(ctx context.Context, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) ([]models.LedgerEvent, error) {
	if aggregateID == uuid.Nil {
		return nil, fmt.Errorf("aggregate id is required")
	}
	return s.repo.ListByAggregate(ctx, aggregateType, aggregateID)
}

func (s *service) HasEvent(ctx context.Context, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}
	events, err := s.History(ctx, aggregateType, aggregateID)
	if err != nil {
		return false, err
	}
	for _, event := range events {
		if event.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}
