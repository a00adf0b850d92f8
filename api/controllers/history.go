package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/api/middleware"
	"github.com/angelmondragon/revo-backend/api/responses"
	"github.com/angelmondragon/revo-backend/api/validators"
	"github.com/angelmondragon/revo-backend/internal/history"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
)

// HistoryService lists a user's orders and trade-ins together.
type HistoryService interface {
	MyItems(ctx context.Context, userID uuid.UUID, limit int) (*history.Items, error)
}

// MyItems returns the caller's orders and trade-ins on one timeline.
func MyItems(svc HistoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history service unavailable"))
			return
		}
		userID, _, err := middleware.AuthenticatedUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", history.DefaultLimit, 1, history.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.MyItems(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
