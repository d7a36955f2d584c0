package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/auth"
	"github.com/jburchel/kitchentory/internal/model"
)

// PermissionChecker is satisfied by the household service.
type PermissionChecker interface {
	RequirePermission(householdID int64, userID string, p model.Permission) error
}

// RequirePermission gates a household-scoped route on one permission. The
// household comes from the {id} path value and the user from the principal.
func RequirePermission(checker PermissionChecker, perm model.Permission, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			householdID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid household id")
				return
			}
			userID := auth.UserID(r.Context())
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			if err := checker.RequirePermission(householdID, userID, perm); err != nil {
				var de *access.DeniedError
				if errors.As(err, &de) {
					writeError(w, http.StatusForbidden, de.Reason)
					return
				}
				logger.Error("check permission", "household_id", householdID, "permission", perm, "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
