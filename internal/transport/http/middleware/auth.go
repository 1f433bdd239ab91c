package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/blog-otp-auth/internal/domain"
)

type contextKey string

const claimsKey contextKey = "claims"

type authenticator interface {
	Authenticate(token string) (*domain.Principal, error)
}

// Auth returns middleware that validates the Bearer session token and injects
// the principal into context. A missing token is 401, a bad one 403.
func Auth(sessions authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := sessions.Authenticate(bearerToken(r))
			if err != nil {
				status := http.StatusForbidden
				if errors.Is(err, domain.ErrUnauthorized) {
					status = http.StatusUnauthorized
				}
				writeJSONError(w, status, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, claimsKey, p)
}

// ClaimsFromContext extracts the authenticated principal from the request context.
func ClaimsFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(claimsKey).(*domain.Principal)
	return p, ok && p != nil
}
