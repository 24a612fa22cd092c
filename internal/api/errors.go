package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nutritrack/internal/capture"
	"nutritrack/internal/meal"
	"nutritrack/internal/platform/auth"
	"nutritrack/internal/platform/backend"
	"nutritrack/internal/scan"
	"nutritrack/internal/session"
	"nutritrack/internal/tracker"
)

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var providerErr *auth.ProviderError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, session.ErrNotSignedIn), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrProfileRequired):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, scan.ErrScanInProgress):
		return http.StatusConflict
	case errors.Is(err, meal.ErrNotFood), errors.Is(err, meal.ErrMalformedAnalysis), errors.Is(err, meal.ErrInvalidAnalysis):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrPasswordMismatch),
		errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, tracker.ErrEmptyAllergenName),
		errors.Is(err, meal.ErrUnknownSeverity),
		errors.Is(err, tracker.ErrNotCommonAllergen),
		errors.Is(err, tracker.ErrIncompleteProfile),
		errors.Is(err, tracker.ErrInvalidPlan),
		errors.Is(err, capture.ErrEmptyImage),
		errors.Is(err, capture.ErrUnsupportedType),
		errors.Is(err, capture.ErrTooLarge),
		errors.Is(err, capture.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.As(err, &providerErr) && providerErr.Code < 500:
		return http.StatusBadRequest
	}
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) || errors.As(err, &providerErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail logs err and writes it as {"error": ...}.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	entry := h.logger(c).WithError(err).WithField("status", status)
	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
