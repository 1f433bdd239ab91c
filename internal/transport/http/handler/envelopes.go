package handler

import (
	"encoding/json"
	"net/http"

	"github.com/blog-otp-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendOTPEnvelope is returned by send-otp. OTPToken is set only when codes
// travel in client-held tickets.
type SendOTPEnvelope struct {
	Message  string `json:"message"`
	OTPToken string `json:"otpToken,omitempty"`
}

// AttemptEnvelope reports a failed attempt together with the ticket to use
// for the next one.
type AttemptEnvelope struct {
	Error    string `json:"error"`
	OTPToken string `json:"otpToken,omitempty"`
}

// TokenEnvelope wraps verify-otp and complete-signup responses.
type TokenEnvelope struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
