package domain

import (
	"strings"
	"time"
)

// Purpose tags an OTP flow and gates which completion it may trigger.
type Purpose string

const (
	PurposeLogin  Purpose = "login"
	PurposeSignup Purpose = "signup"
)

// PurposeFromSignupFlag maps the isSignup request flag onto a Purpose.
func PurposeFromSignupFlag(isSignup bool) Purpose {
	if isSignup {
		return PurposeSignup
	}
	return PurposeLogin
}

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool { return p == PurposeLogin || p == PurposeSignup }

// OTPRecord is the state of one issued code. Server-side stores persist it
// keyed by email; the ticket store carries it inside a signed token.
// CodeHash is a bcrypt hash server-side and a keyed digest inside tickets;
// the plain code is never stored.
type OTPRecord struct {
	Email     string    `json:"email" dynamodbav:"email"`
	CodeHash  string    `json:"code_hash" dynamodbav:"code_hash"`
	Purpose   Purpose   `json:"purpose" dynamodbav:"purpose"`
	IssuedAt  time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"-"`
	Attempts  int       `json:"attempts" dynamodbav:"attempts"`
	// ExpiresAtUnix mirrors ExpiresAt for the DynamoDB TTL attribute.
	ExpiresAtUnix int64 `json:"-" dynamodbav:"expires_at"`
}

// NewOTPRecord builds a fresh record with zero attempts.
func NewOTPRecord(email, codeHash string, purpose Purpose, now time.Time, ttl time.Duration) *OTPRecord {
	exp := now.Add(ttl)
	return &OTPRecord{
		Email:         email,
		CodeHash:      codeHash,
		Purpose:       purpose,
		IssuedAt:      now,
		ExpiresAt:     exp,
		Attempts:      0,
		ExpiresAtUnix: exp.Unix(),
	}
}

// Expired reports whether now is past the record's expiry.
func (r *OTPRecord) Expired(now time.Time) bool { return now.After(r.ExpiresAt) }

// Exhausted reports whether the attempt budget is spent.
func (r *OTPRecord) Exhausted(maxAttempts int) bool { return r.Attempts >= maxAttempts }

// NormalizeEmail lowercases and trims an email so store keys are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
