package session

import (
	"log/slog"

	"github.com/blog-otp-auth/internal/domain"
	jwtinfra "github.com/blog-otp-auth/internal/infrastructure/jwt"
)

type tokenVerifier interface {
	Verify(token string) (jwtinfra.Claims, error)
}

// Service turns a bearer session token into a Principal.
type Service interface {
	Authenticate(token string) (*domain.Principal, error)
}

type service struct {
	tokens tokenVerifier
}

func NewService(tokens tokenVerifier) Service {
	return &service{tokens: tokens}
}

// Authenticate fails with domain.ErrMissingToken for an empty token and
// domain.ErrInvalidOrExpiredToken for anything that does not verify as a
// session token. OTP tickets are rejected even though they share the key.
func (s *service) Authenticate(token string) (*domain.Principal, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		slog.Debug("session token rejected", "err", err)
		return nil, domain.ErrInvalidOrExpiredToken
	}
	if claims.String(domain.ClaimType) != domain.TokenTypeSession {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	email := claims.String(domain.ClaimEmail)
	if email == "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return &domain.Principal{Email: email, UserID: claims.String(domain.ClaimUserID)}, nil
}
