package handler

import (
	"net/http"

	"github.com/blog-otp-auth/internal/application/user"
	"github.com/blog-otp-auth/internal/domain"
	"github.com/blog-otp-auth/internal/transport/http/middleware"
)

// ProfileHandler serves the authenticated caller's profile.
type ProfileHandler struct {
	svc user.Service
}

func NewProfileHandler(svc user.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, domain.ErrMissingToken, "")
		return
	}
	profile, err := h.svc.Profile(r.Context(), p)
	if err != nil {
		httpError(w, err, "Failed to get user profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
