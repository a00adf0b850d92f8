package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/revo-backend/pkg/enums"
)

// PickupRequest is a user's request to have a device collected for trade-in.
// Exactly one of BrandID and BrandName is set.
type PickupRequest struct {
	ID                  uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID                   `gorm:"column:user_id;type:uuid;not null"`
	BrandID             *uuid.UUID                  `gorm:"column:brand_id;type:uuid"`
	BrandName           *string                     `gorm:"column:brand_name"`
	ModelText           string                      `gorm:"column:model_text;not null"`
	Storage             *string                     `gorm:"column:storage"`
	Condition           enums.DeviceCondition       `gorm:"column:condition;not null"`
	AdditionalInfo      *string                     `gorm:"column:additional_info"`
	Notes               *string                     `gorm:"column:notes"`
	Address             datatypes.JSON              `gorm:"column:address;type:jsonb"`
	AddressText         *string                     `gorm:"column:address_text"`
	ScheduledAt         *time.Time                  `gorm:"column:scheduled_at"`
	DepositCents        int64                       `gorm:"column:deposit_cents;not null"`
	EstimatedPriceCents *int64                      `gorm:"column:estimated_price_cents"`
	Status              enums.PickupStatus          `gorm:"column:status;type:pickup_status;not null"`
	Photos              datatypes.JSONSlice[string] `gorm:"column:photos;type:jsonb;not null"`
	Evaluation          *Evaluation                 `gorm:"foreignKey:PickupID;references:ID"`
	CreatedAt           time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// Evaluation is the single current assessment of a pickup, replaced in place
// on resubmission.
type Evaluation struct {
	ID                  uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	PickupID            uuid.UUID                   `gorm:"column:pickup_id;type:uuid;not null;uniqueIndex"`
	EvaluatorID         uuid.UUID                   `gorm:"column:evaluator_id;type:uuid;not null"`
	Diagnostics         datatypes.JSONMap           `gorm:"column:diagnostics;type:jsonb"`
	PartsReplaced       datatypes.JSONSlice[string] `gorm:"column:parts_replaced;type:jsonb;not null"`
	EvaluationCostCents int64                       `gorm:"column:evaluation_cost_cents;not null"`
	FinalOfferCents     *int64                      `gorm:"column:final_offer_cents"`
	Notes               *string                     `gorm:"column:notes"`
	CreatedAt           time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
