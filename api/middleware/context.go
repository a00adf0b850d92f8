package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// UserUUIDFromContext parses the authenticated user id. ok is false when the
// request carried no usable identity.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// UserRoleFromContext returns the typed role, or "" when none is set.
func UserRoleFromContext(ctx context.Context) enums.UserRole {
	role, err := enums.ParseUserRole(RoleFromContext(ctx))
	if err != nil {
		return ""
	}
	return role
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, string(role))
}

// AuthenticatedUser returns the caller identity or an Unauthorized error.
func AuthenticatedUser(ctx context.Context) (uuid.UUID, enums.UserRole, error) {
	userID, ok := UserUUIDFromContext(ctx)
	if !ok {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return userID, UserRoleFromContext(ctx), nil
}
