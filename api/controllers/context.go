package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/growersmarket/farmdirect-backend/api/middleware"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
)

// actorIdentity resolves the authenticated caller from the request context.
func actorIdentity(r *http.Request) (uuid.UUID, enums.MemberRole, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid identity")
	}
	role := enums.MemberRole(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing role")
	}
	return userID, role, nil
}
