package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrValidation   = errors.New("validation failed")
	ErrExpired      = errors.New("expired")
	ErrInvalid      = errors.New("invalid")
	ErrMismatch     = errors.New("mismatch")
	ErrExhausted    = errors.New("too many attempts")
	ErrConflict     = errors.New("conflict")
	ErrDelivery     = errors.New("delivery failed")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Error is a user-facing error. Msg is safe to return to clients; Kind is
// one of the sentinels above and is what errors.Is matches against.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// OTP protocol errors.
var (
	ErrEmailRequired   = newError(ErrValidation, "Email is required")
	ErrOTPExpired      = newError(ErrExpired, "OTP expired")
	ErrOTPNotSent      = newError(ErrExpired, "OTP expired or not sent")
	ErrInvalidTicket   = newError(ErrInvalid, "Invalid token")
	ErrEmailMismatch   = newError(ErrMismatch, "Email mismatch")
	ErrInvalidOTP      = newError(ErrMismatch, "Invalid OTP")
	ErrWrongPurpose    = newError(ErrMismatch, "This OTP was not generated for signup")
	ErrTooManyAttempts = newError(ErrExhausted, "Too many attempts. Please request a new OTP")
	ErrAlreadyExists   = newError(ErrConflict, "An account with this email already exists")
	ErrAccountNotFound = newError(ErrConflict, "No account found for this email")
)

// Session errors.
var (
	ErrMissingToken          = newError(ErrUnauthorized, "Access token required")
	ErrInvalidOrExpiredToken = newError(ErrForbidden, "Invalid or expired token")
)
