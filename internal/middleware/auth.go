package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jburchel/kitchentory/internal/auth"
	"github.com/jburchel/kitchentory/internal/store"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// RequireAuth verifies the bearer token, records the principal in users and
// places it in the request context.
func RequireAuth(verifier *auth.Verifier, users *store.UserStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			p, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "request_id", RequestIDFrom(r.Context()))
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if users != nil {
				if _, err := users.Upsert(p.UserID, p.Email, p.Name); err != nil {
					logger.Error("upsert principal", "user_id", p.UserID, "error", err)
					writeError(w, http.StatusInternalServerError, "internal error")
					return
				}
			}

			ctx := auth.WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
