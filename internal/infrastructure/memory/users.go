package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/blog-otp-auth/internal/domain"
)

// UserRepo is an in-process user store for development (USER_STORE=memory).
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserRepo() *UserRepo {
	return &UserRepo{byID: make(map[string]domain.User), byEmail: make(map[string]string)}
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
	}
	if _, ok := r.byID[u.UserID]; ok {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrConflict)
	}
	r.byID[u.UserID] = *u
	r.byEmail[u.Email] = u.UserID
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	u := r.byID[userID]
	return &u, nil
}
