// Package ticket implements a stateless OTP store: the record travels to
// the client inside a signed, expiring token and comes back on verify.
//
// Without server state a ticket cannot be revoked, so a consumed ticket can
// be replayed until it expires and a client can retry with an older ticket
// to reset its attempt count. Use a server-side store where that matters.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blog-otp-auth/internal/domain"
	jwtinfra "github.com/blog-otp-auth/internal/infrastructure/jwt"
	"github.com/blog-otp-auth/internal/pkg/id"
)

// Ticket claim names.
const (
	claimPurpose   = "purpose"
	claimAttempts  = "att"
	claimIssuedAt  = "iss_at"
	claimExpiresAt = "exp_at"
	claimCodeHash  = "ch"
	claimTicketID  = "jti"
)

type codec interface {
	Sign(claims jwtinfra.Claims, ttl time.Duration) (string, error)
	Verify(token string) (jwtinfra.Claims, error)
}

// Store signs records into tickets. The record's CodeHash must be a keyed
// digest, never a plain code.
type Store struct {
	tokens codec
	now    func() time.Time
}

func NewStore(tokens codec, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{tokens: tokens, now: now}
}

// Put returns the ticket as the handle.
func (s *Store) Put(_ context.Context, rec *domain.OTPRecord) (string, error) {
	return s.sign(rec, id.NewTokenID())
}

func (s *Store) Get(_ context.Context, email, handle string) (*domain.OTPRecord, error) {
	rec, _, err := s.open(email, handle)
	return rec, err
}

// RecordAttempt re-signs the ticket with one more attempt and returns it as
// the new handle.
func (s *Store) RecordAttempt(_ context.Context, email, handle string, maxAttempts int) (*domain.OTPRecord, string, error) {
	rec, jti, err := s.open(email, handle)
	if err != nil {
		return nil, "", err
	}
	rec.Attempts++
	next, err := s.sign(rec, jti)
	if err != nil {
		return nil, "", err
	}
	if rec.Exhausted(maxAttempts) {
		return rec, next, domain.ErrTooManyAttempts
	}
	return rec, next, nil
}

// Consume is a no-op: tickets expire on their own.
func (s *Store) Consume(context.Context, string, string) error { return nil }

func (s *Store) sign(rec *domain.OTPRecord, jti string) (string, error) {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return "", domain.ErrOTPExpired
	}
	token, err := s.tokens.Sign(jwtinfra.Claims{
		domain.ClaimEmail: rec.Email,
		domain.ClaimType:  domain.TokenTypeOTP,
		claimPurpose:      string(rec.Purpose),
		claimAttempts:     rec.Attempts,
		claimIssuedAt:     rec.IssuedAt.UnixMilli(),
		claimExpiresAt:    rec.ExpiresAt.UnixMilli(),
		claimCodeHash:     rec.CodeHash,
		claimTicketID:     jti,
	}, ttl)
	if err != nil {
		return "", fmt.Errorf("sign otp ticket: %w", err)
	}
	return token, nil
}

func (s *Store) open(email, handle string) (*domain.OTPRecord, string, error) {
	if handle == "" {
		return nil, "", domain.ErrInvalidTicket
	}
	claims, err := s.tokens.Verify(handle)
	if errors.Is(err, jwtinfra.ErrTokenExpired) {
		return nil, "", domain.ErrOTPExpired
	}
	if err != nil || claims.String(domain.ClaimType) != domain.TokenTypeOTP {
		return nil, "", domain.ErrInvalidTicket
	}
	purpose := domain.Purpose(claims.String(claimPurpose))
	if !purpose.Valid() || claims.String(claimCodeHash) == "" {
		return nil, "", domain.ErrInvalidTicket
	}
	if claims.String(domain.ClaimEmail) != email {
		return nil, "", domain.ErrEmailMismatch
	}
	exp := time.UnixMilli(claims.Int(claimExpiresAt)).UTC()
	return &domain.OTPRecord{
		Email:         email,
		CodeHash:      claims.String(claimCodeHash),
		Purpose:       purpose,
		IssuedAt:      time.UnixMilli(claims.Int(claimIssuedAt)).UTC(),
		ExpiresAt:     exp,
		Attempts:      int(claims.Int(claimAttempts)),
		ExpiresAtUnix: exp.Unix(),
	}, claims.String(claimTicketID), nil
}
