package tradein

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	"github.com/angelmondragon/revo-backend/pkg/types"
)

// SubmitPickupInput is a trade-in submission. Exactly one of BrandID and
// BrandName must be set.
type SubmitPickupInput struct {
	BrandID             *uuid.UUID
	BrandName           *string
	ModelText           string
	Storage             *string
	Condition           string
	AdditionalInfo      *string
	Notes               *string
	Address             *types.Address
	AddressText         *string
	ScheduledAt         *time.Time
	DepositCents        int64
	EstimatedPriceCents *int64
	Photos              []Photo
}

// EvaluationView is the evaluator's current assessment as shown to owners and
// staff.
type EvaluationView struct {
	ID                  uuid.UUID      `json:"id"`
	EvaluatorID         uuid.UUID      `json:"evaluator_id"`
	Diagnostics         map[string]any `json:"diagnostics,omitempty"`
	PartsReplaced       []string       `json:"parts_replaced"`
	EvaluationCostCents int64          `json:"evaluation_cost_cents"`
	FinalOfferCents     *int64         `json:"final_offer_cents,omitempty"`
	Notes               *string        `json:"notes,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type PickupView struct {
	ID                  uuid.UUID             `json:"id"`
	UserID              uuid.UUID             `json:"user_id"`
	BrandID             *uuid.UUID            `json:"brand_id,omitempty"`
	BrandName           *string               `json:"brand_name,omitempty"`
	ModelText           string                `json:"model_text"`
	Storage             *string               `json:"storage,omitempty"`
	Condition           enums.DeviceCondition `json:"condition"`
	ConditionLabel      string                `json:"condition_label"`
	AdditionalInfo      *string               `json:"additional_info,omitempty"`
	Notes               *string               `json:"notes,omitempty"`
	Address             *types.Address        `json:"address,omitempty"`
	AddressText         *string               `json:"address_text,omitempty"`
	ScheduledAt         *time.Time            `json:"scheduled_at,omitempty"`
	DepositCents        int64                 `json:"deposit_cents"`
	EstimatedPriceCents *int64                `json:"estimated_price_cents,omitempty"`
	Status              enums.PickupStatus    `json:"status"`
	Photos              []string              `json:"photos"`
	Evaluation          *EvaluationView       `json:"evaluation,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// ToView flattens a pickup row and its optional evaluation. An undecodable
// address is omitted rather than failing the read.
func ToView(p models.PickupRequest) PickupView {
	view := PickupView{
		ID:                  p.ID,
		UserID:              p.UserID,
		BrandID:             p.BrandID,
		BrandName:           p.BrandName,
		ModelText:           p.ModelText,
		Storage:             p.Storage,
		Condition:           p.Condition,
		ConditionLabel:      p.Condition.Label(),
		AdditionalInfo:      p.AdditionalInfo,
		Notes:               p.Notes,
		AddressText:         p.AddressText,
		ScheduledAt:         p.ScheduledAt,
		DepositCents:        p.DepositCents,
		EstimatedPriceCents: p.EstimatedPriceCents,
		Status:              p.Status,
		Photos:              append([]string{}, p.Photos...),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if len(p.Address) > 0 {
		var addr types.Address
		if err := json.Unmarshal(p.Address, &addr); err == nil && !addr.IsZero() {
			view.Address = &addr
		}
	}
	if p.Evaluation != nil && p.Evaluation.ID != uuid.Nil {
		view.Evaluation = ToEvaluationView(*p.Evaluation)
	}
	return view
}

func ToEvaluationView(e models.Evaluation) *EvaluationView {
	return &EvaluationView{
		ID:                  e.ID,
		EvaluatorID:         e.EvaluatorID,
		Diagnostics:         map[string]any(e.Diagnostics),
		PartsReplaced:       append([]string{}, e.PartsReplaced...),
		EvaluationCostCents: e.EvaluationCostCents,
		FinalOfferCents:     e.FinalOfferCents,
		Notes:               e.Notes,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}
