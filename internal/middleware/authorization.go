package middleware

import (
	"context"
	"net/http"

	"helmet-shop/internal/domain"

	"go.uber.org/zap"
)

// AdminChecker decides whether a caller holds admin capability.
type AdminChecker interface {
	IsAdmin(ctx context.Context, principal domain.Principal) (bool, error)
}

// RequireAdmin lets the request through only for admins. It must run after
// AuthMiddleware.
func RequireAdmin(checker AdminChecker, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				logger.Warn("Principal not found in context")
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			isAdmin, err := checker.IsAdmin(r.Context(), principal)
			if err != nil {
				logger.Error("Admin check failed",
					zap.String("user_id", principal.UserID.String()),
					zap.Error(err),
				)
				RespondWithError(w, http.StatusInternalServerError, "failed to verify permissions")
				return
			}

			if !isAdmin {
				logger.Warn("Non-admin user attempted to access admin endpoint",
					zap.String("user_id", principal.UserID.String()),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
