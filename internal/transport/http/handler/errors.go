package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/blog-otp-auth/internal/application/auth"
	"github.com/blog-otp-auth/internal/domain"
)

// httpError maps a service error to a JSON error response. User-facing
// domain errors keep their message; anything else is logged and answered
// with fallback.
func httpError(w http.ResponseWriter, err error, fallback string) {
	var de *domain.Error
	switch {
	case errors.Is(err, domain.ErrDelivery):
		slog.Error("otp delivery failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to send OTP")
	case errors.As(err, &de):
		status := statusFor(de.Kind)
		var ae *auth.AttemptError
		if errors.As(err, &ae) {
			writeJSON(w, status, AttemptEnvelope{Error: de.Msg, OTPToken: ae.Handle})
			return
		}
		writeError(w, status, de.Msg)
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func statusFor(kind error) int {
	switch kind {
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrDelivery, domain.ErrUpstream, domain.ErrNotFound:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
