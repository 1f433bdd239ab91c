package http

import (
	"context"

	"github.com/blog-otp-auth/internal/application/auth"
	"github.com/blog-otp-auth/internal/domain"
	jwtinfra "github.com/blog-otp-auth/internal/infrastructure/jwt"
	"github.com/blog-otp-auth/internal/pkg/otpcode"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	OTPStore auth.OTPStore
	Users    UserRepository
	Notifier auth.Notifier
	Tokens   *jwtinfra.Provider
	// Hasher must be keyed when OTPStore hands records to clients.
	Hasher otpcode.Hasher
}
