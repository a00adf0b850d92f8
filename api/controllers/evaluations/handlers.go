package evaluations

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/api/middleware"
	"github.com/angelmondragon/revo-backend/api/responses"
	"github.com/angelmondragon/revo-backend/api/validators"
	evalsvc "github.com/angelmondragon/revo-backend/internal/evaluations"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/pagination"
)

type submitRequest struct {
	PickupID            uuid.UUID      `json:"pickup_id"`
	TargetStatus        string         `json:"target_status"`
	FinalOfferCents     *int64         `json:"final_offer_cents"`
	EvaluationCostCents int64          `json:"evaluation_cost_cents"`
	Notes               *string        `json:"notes"`
	Diagnostics         map[string]any `json:"diagnostics"`
	PartsReplaced       []string       `json:"parts_replaced"`
}

// Submit creates or replaces the evaluation of a pickup and moves the pickup
// to target_status, which defaults to offered.
func Submit(svc evalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "evaluation service unavailable"))
			return
		}
		evaluatorID, role, err := middleware.AuthenticatedUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.PickupID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "pickup_id is required"))
			return
		}
		if strings.TrimSpace(payload.TargetStatus) == "" {
			payload.TargetStatus = string(enums.PickupStatusOffered)
		}
		if logg != nil {
			r = r.WithContext(logg.WithPickupID(r.Context(), payload.PickupID.String()))
		}

		view, err := svc.SubmitEvaluation(r.Context(), evaluatorID, evalsvc.SubmitInput{
			PickupID:        payload.PickupID,
			ActorRole:       role,
			FinalOfferCents: payload.FinalOfferCents,
			TargetStatus:    payload.TargetStatus,
			Notes:           payload.Notes,
			CostCents:       payload.EvaluationCostCents,
			Diagnostics:     payload.Diagnostics,
			PartsReplaced:   payload.PartsReplaced,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, view)
	}
}

// ListPickups is the evaluator queue: pickups with their evaluation, newest
// first, filtered by status and user_id.
func ListPickups(svc evalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "evaluation service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := evalsvc.AdminListParams{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePickupStatus(strings.ToLower(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}
		if params.UserID, err = validators.ParseOptionalUUIDQuery(r, "user_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForAdmin(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
