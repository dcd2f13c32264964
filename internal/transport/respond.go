package transport

import (
	"errors"
	"net/http"
	"net/url"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/middleware"
	"helmet-shop/internal/payment"
	"helmet-shop/internal/repository"
	"helmet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidID = errors.New("invalid identifier")

// statusFor maps domain, service and repository errors onto HTTP statuses.
// Anything unrecognised is a 500.
func statusFor(err error) int {
	var upstream *payment.UpstreamError
	var incomplete *service.PaymentIncompleteError

	switch {
	case errors.Is(err, service.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, repository.ErrInvalidProduct),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrMissingIdentifiers),
		errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrCartEntryNotFound),
		errors.Is(err, repository.ErrAdminGrantNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, repository.ErrOrderStatusConflict),
		errors.Is(err, repository.ErrDuplicateOrder),
		errors.Is(err, repository.ErrPaymentIntentUsed):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentRequiresAction),
		errors.Is(err, service.ErrPaymentAmountMismatch),
		errors.As(err, &incomplete):
		return http.StatusPaymentRequired
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the text shown to the caller. Internal failures get
// fallback instead of the underlying error.
func clientMessage(err error, fallback string) string {
	var upstream *payment.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	if statusFor(err) == http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}

// respondServiceError writes the /api error envelope for err and logs
// server-side failures.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
	}
	middleware.RespondWithError(w, status, clientMessage(err, fallback))
}

// RespondPlainError writes the flat {"error": "..."} body of the payment endpoints.
func RespondPlainError(w http.ResponseWriter, statusCode int, message string) {
	middleware.RespondWithJSON(w, statusCode, map[string]string{"error": message})
}

func messageResponse(message string) map[string]string {
	return map[string]string{"message": message}
}

func principalFrom(r *http.Request) domain.Principal {
	principal, _ := middleware.GetPrincipal(r.Context())
	return principal
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}
