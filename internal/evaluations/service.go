package evaluations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/internal/tradein"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/revo-backend/pkg/pagination"
)

const (
	maxNotesLen     = 2000
	maxPartsPerEval = 50
)

// SubmitInput is an evaluator's assessment of a pickup.
type SubmitInput struct {
	PickupID        uuid.UUID
	ActorRole       enums.UserRole
	FinalOfferCents *int64
	TargetStatus    string
	Notes           *string
	CostCents       int64
	Diagnostics     map[string]any
	PartsReplaced   []string
}

// AdminListParams filters the evaluator pickup queue.
type AdminListParams struct {
	Status *enums.PickupStatus
	UserID *uuid.UUID
	pagination.Params
}

type PickupList struct {
	Pickups    []tradein.PickupView `json:"pickups"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// Service drives the evaluator and owner side of the pickup lifecycle.
type Service interface {
	SubmitEvaluation(ctx context.Context, evaluatorID uuid.UUID, input SubmitInput) (*tradein.PickupView, error)
	RespondToOffer(ctx context.Context, userID, pickupID uuid.UUID, action string) (*tradein.PickupView, error)
	ListForAdmin(ctx context.Context, params AdminListParams) (*PickupList, error)
}

type service struct {
	repo    Repository
	pickups tradein.Repository
	tx      db.TxRunner
	outbox  outbox.Emitter
	ledger  ledger.Service
	logg    *logger.Logger
}

func NewService(repo Repository, pickups tradein.Repository, tx db.TxRunner, emitter outbox.Emitter, ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("evaluations repository required")
	}
	if pickups == nil {
		return nil, fmt.Errorf("pickup repository required")
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
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, pickups: pickups, tx: tx, outbox: emitter, ledger: ledgerSvc, logg: logg}, nil
}

// SubmitEvaluation creates or replaces the pickup's evaluation and moves the
// pickup to the requested status in one transaction.
func (s *service) SubmitEvaluation(ctx context.Context, evaluatorID uuid.UUID, input SubmitInput) (*tradein.PickupView, error) {
	if evaluatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "evaluator id is required")
	}
	if input.PickupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup id is required")
	}
	target, err := enums.ParsePickupStatus(strings.ToLower(strings.TrimSpace(input.TargetStatus)))
	if err != nil || !target.IsEvaluatorSettable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target_status must be one of requested, collected, evaluating, offered")
	}
	if input.FinalOfferCents != nil && *input.FinalOfferCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "final_offer_cents must be non-negative")
	}
	if target == enums.PickupStatusOffered && input.FinalOfferCents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "final_offer_cents is required to make an offer")
	}
	if input.CostCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "evaluation_cost_cents must be non-negative")
	}
	notes := trimmed(input.Notes)
	if notes != nil && len(*notes) > maxNotesLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLen))
	}
	parts := cleanParts(input.PartsReplaced)
	if len(parts) > maxPartsPerEval {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d replaced parts are allowed", maxPartsPerEval))
	}

	ctx = s.logg.WithPickupID(s.logg.WithUserID(ctx, evaluatorID.String()), input.PickupID.String())
	var view tradein.PickupView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		pickups := s.pickups.WithTx(tx)
		pickup, err := lockPickup(ctx, pickups, input.PickupID)
		if err != nil {
			return err
		}
		if pickup.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup request already answered").
				WithDetails(map[string]any{"status": pickup.Status})
		}

		evaluation, err := s.repo.WithTx(tx).Upsert(ctx, &models.Evaluation{
			PickupID:            pickup.ID,
			EvaluatorID:         evaluatorID,
			Diagnostics:         datatypes.JSONMap(input.Diagnostics),
			PartsReplaced:       datatypes.JSONSlice[string](parts),
			EvaluationCostCents: input.CostCents,
			FinalOfferCents:     input.FinalOfferCents,
			Notes:               notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save evaluation")
		}

		from := pickup.Status
		if from != target {
			if err := pickups.UpdateStatus(ctx, pickup.ID, target); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pickup status")
			}
			pickup.Status = target
		}
		if err := s.recordEvaluated(ctx, tx, evaluatorID, input.ActorRole, pickup, evaluation, from); err != nil {
			return err
		}

		pickup.Evaluation = evaluation
		view = tradein.ToView(*pickup)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "status", view.Status), "pickup evaluation saved")
	return &view, nil
}

// RespondToOffer records the owner's accept or reject decision on an offer.
func (s *service) RespondToOffer(ctx context.Context, userID, pickupID uuid.UUID, action string) (*tradein.PickupView, error) {
	if userID == uuid.Nil || pickupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and pickup id are required")
	}
	parsed, err := enums.ParseOfferAction(action)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action must be accept or reject")
	}

	ctx = s.logg.WithPickupID(s.logg.WithUserID(ctx, userID.String()), pickupID.String())
	var view tradein.PickupView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		pickups := s.pickups.WithTx(tx)
		pickup, err := lockPickup(ctx, pickups, pickupID)
		if err != nil {
			return err
		}
		if pickup.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pickup request not found")
		}
		if pickup.Status != enums.PickupStatusOffered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup request has no open offer").
				WithDetails(map[string]any{"status": pickup.Status})
		}
		evaluation, err := s.repo.WithTx(tx).FindByPickupID(ctx, pickup.ID)
		if err != nil && !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load evaluation")
		}
		if evaluation == nil || evaluation.FinalOfferCents == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup request has no final offer")
		}

		next := parsed.ResultingStatus()
		if err := pickups.UpdateStatus(ctx, pickup.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pickup status")
		}
		pickup.Status = next
		if err := s.recordResponse(ctx, tx, pickup, parsed, *evaluation.FinalOfferCents); err != nil {
			return err
		}

		pickup.Evaluation = evaluation
		view = tradein.ToView(*pickup)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "action", parsed), "offer response recorded")
	return &view, nil
}

func (s *service) ListForAdmin(ctx context.Context, params AdminListParams) (*PickupList, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pickup status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.pickups.List(ctx, tradein.ListFilter{Status: params.Status, UserID: params.UserID}, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickup requests")
	}
	page, next := pagination.Trim(rows, params.Limit, func(p models.PickupRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	list := &PickupList{Pickups: make([]tradein.PickupView, 0, len(page)), NextCursor: next}
	for _, row := range page {
		list.Pickups = append(list.Pickups, tradein.ToView(row))
	}
	return list, nil
}

func lockPickup(ctx context.Context, repo tradein.Repository, id uuid.UUID) (*models.PickupRequest, error) {
	pickup, err := repo.LockByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock pickup request")
	}
	return pickup, nil
}

func (s *service) recordEvaluated(ctx context.Context, tx *gorm.DB, evaluatorID uuid.UUID, role enums.UserRole, pickup *models.PickupRequest, evaluation *models.Evaluation, from enums.PickupStatus) error {
	var offer int64
	if evaluation.FinalOfferCents != nil {
		offer = *evaluation.FinalOfferCents
	}
	actor := evaluatorID
	if _, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
		AggregateType: enums.AggregatePickup,
		AggregateID:   pickup.ID,
		ActorUserID:   &actor,
		Type:          enums.LedgerEventPickupEvaluated,
		AmountCents:   offer,
		Metadata: map[string]any{
			"evaluation_id":         evaluation.ID,
			"from":                  from,
			"to":                    pickup.Status,
			"evaluation_cost_cents": evaluation.EvaluationCostCents,
			"parts_replaced":        []string(evaluation.PartsReplaced),
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger event")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPickupEvaluated,
		AggregateType: enums.AggregatePickup,
		AggregateID:   pickup.ID,
		Actor:         &outbox.ActorRef{UserID: evaluatorID, Role: role},
		Data: payloads.PickupEvaluatedEvent{
			PickupID:        pickup.ID,
			UserID:          pickup.UserID,
			EvaluationID:    evaluation.ID,
			Status:          pickup.Status,
			FinalOfferCents: evaluation.FinalOfferCents,
		},
	})
}

func (s *service) recordResponse(ctx context.Context, tx *gorm.DB, pickup *models.PickupRequest, action enums.OfferAction, offer int64) error {
	ledgerType := enums.LedgerEventOfferRejected
	if action == enums.OfferActionAccept {
		ledgerType = enums.LedgerEventOfferAccepted
	}
	actor := pickup.UserID
	if _, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
		AggregateType: enums.AggregatePickup,
		AggregateID:   pickup.ID,
		ActorUserID:   &actor,
		Type:          ledgerType,
		AmountCents:   offer,
		Metadata:      map[string]any{"action": action},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger event")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOfferResponded,
		AggregateType: enums.AggregatePickup,
		AggregateID:   pickup.ID,
		Actor:         &outbox.ActorRef{UserID: pickup.UserID, Role: enums.UserRoleCustomer},
		Data: payloads.OfferRespondedEvent{
			PickupID:        pickup.ID,
			UserID:          pickup.UserID,
			Action:          action,
			Status:          pickup.Status,
			FinalOfferCents: offer,
		},
	})
}

func cleanParts(parts []string) []string {
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
	}
	return out
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
