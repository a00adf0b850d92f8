package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/revo-backend/pkg/enums"
)

// LedgerEvent is an append-only audit record of a lifecycle transition.
type LedgerEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	ActorUserID   *uuid.UUID                `gorm:"column:actor_user_id;type:uuid"`
	Type          enums.LedgerEventType     `gorm:"column:type;not null"`
	AmountCents   int64                     `gorm:"column:amount_cents;not null"`
	Metadata      datatypes.JSON            `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
