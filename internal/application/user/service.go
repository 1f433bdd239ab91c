package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/blog-otp-auth/internal/domain"
)

// Profile is what an authenticated caller sees about itself.
type Profile struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

type Service interface {
	Profile(ctx context.Context, p *domain.Principal) (*Profile, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type service struct {
	users   userStore
	timeout time.Duration
}

func NewService(users userStore, timeout time.Duration) Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &service{users: users, timeout: timeout}
}

// Profile enriches the principal from the user store. The token alone is
// authoritative, so a missing or unreachable user still yields a profile.
func (s *service) Profile(ctx context.Context, p *domain.Principal) (*Profile, error) {
	out := &Profile{ID: p.UserID, Email: p.Email}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var (
		u   *domain.User
		err error
	)
	if p.UserID != "" {
		u, err = s.users.Get(ctx, p.UserID)
	} else {
		u, err = s.users.GetByEmail(ctx, p.Email)
	}
	switch {
	case err == nil:
		out.ID = u.UserID
		out.Username = u.Username
		out.Name = u.Name
	case errors.Is(err, domain.ErrNotFound):
	default:
		slog.Warn("profile lookup failed", "email", p.Email, "err", err)
	}
	return out, nil
}
