package handler

import (
	"encoding/json"
	"net/http"

	"github.com/blog-otp-auth/internal/application/auth"
	"github.com/blog-otp-auth/internal/pkg/validate"
)

// AuthHandler serves the OTP login and signup endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.RequestCode(r.Context(), req)
	if err != nil {
		httpError(w, err, "Failed to send OTP")
		return
	}
	writeJSON(w, http.StatusOK, SendOTPEnvelope{Message: "OTP sent successfully", OTPToken: res.OTPToken})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err, "Failed to verify OTP")
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: token})
}

func (h *AuthHandler) CompleteSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.CompleteSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		httpError(w, err, "Failed to complete signup")
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: res.Token, User: res.User})
}
