package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"helmet-shop/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrMissingSigningSecret is returned for every token when no session secret
// is configured. An empty HMAC key would accept tokens anyone can sign.
var ErrMissingSigningSecret = errors.New("session signing secret not configured")

// SessionClaims is the part of the auth service's access token the shop
// relies on. The subject is the user id shared with profiles.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the session token issued by the hosted auth
// service and stores the caller's Principal in the request context.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			principal, err := ParseSessionToken(tokenString, jwtSecret)
			if errors.Is(err, ErrMissingSigningSecret) {
				logger.Error("Rejecting session token", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			logger.Debug("User authenticated", zap.String("user_id", principal.UserID.String()))

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// ParseSessionToken validates an HS256 session token and returns its
// principal. Tokens without an expiry or with a non-uuid subject are rejected.
func ParseSessionToken(tokenString, secret string) (domain.Principal, error) {
	if secret == "" {
		return domain.Principal{}, ErrMissingSigningSecret
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Principal{}, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return domain.Principal{}, jwt.ErrTokenInvalidSubject
	}

	return domain.Principal{UserID: userID, Email: claims.Email}, nil
}

// WithPrincipal returns a copy of ctx carrying the authenticated caller.
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// GetPrincipal extracts the authenticated caller from the request context
func GetPrincipal(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(domain.Principal)
	return principal, ok
}
