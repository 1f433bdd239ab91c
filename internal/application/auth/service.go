package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blog-otp-auth/internal/domain"
	jwtinfra "github.com/blog-otp-auth/internal/infrastructure/jwt"
	"github.com/blog-otp-auth/internal/pkg/id"
	"github.com/blog-otp-auth/internal/pkg/keylock"
	"github.com/blog-otp-auth/internal/pkg/otpcode"
)

type SendOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	IsSignup bool   `json:"isSignup"`
}

type SendOTPResult struct {
	// OTPToken is the ticket handle; empty for server-side stores.
	OTPToken string
}

type VerifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,otp"`
	OTPToken string `json:"otpToken"`
}

type CompleteSignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Name     string `json:"name" validate:"required,max=100"`
	OTP      string `json:"otp" validate:"required,otp"`
	OTPToken string `json:"otpToken"`
}

// VerifyInput is the input of VerifyCode. An empty Purpose accepts either.
type VerifyInput struct {
	Email   string
	Code    string
	Handle  string
	Purpose domain.Purpose
}

type SignupResult struct {
	Token string
	User  *domain.User
}

// AttemptError is returned for a failed attempt when the store hands back
// a refreshed ticket that the client should use for its next try.
type AttemptError struct {
	Err    error
	Handle string
}

func (e *AttemptError) Error() string { return e.Err.Error() }
func (e *AttemptError) Unwrap() error { return e.Err }

// Service drives request code -> verify code -> issue session.
type Service interface {
	RequestCode(ctx context.Context, req SendOTPRequest) (*SendOTPResult, error)
	VerifyCode(ctx context.Context, in VerifyInput) (*domain.OTPRecord, error)
	CompleteLogin(ctx context.Context, rec *domain.OTPRecord) (string, error)
	CompleteSignup(ctx context.Context, rec *domain.OTPRecord, username, name string) (*SignupResult, error)

	// Login verifies a code of either purpose and issues a session token.
	Login(ctx context.Context, req VerifyOTPRequest) (string, error)
	// Signup verifies a signup code, creates the user and issues a session token.
	Signup(ctx context.Context, req CompleteSignupRequest) (*SignupResult, error)
}

type service struct {
	store    OTPStore
	users    UserStore
	notifier Notifier
	tokens   tokenSigner
	codes    codeGenerator
	hasher   otpcode.Hasher
	clock    func() time.Time
	locks    *keylock.Locker

	otpTTL          time.Duration
	sessionTTL      time.Duration
	maxAttempts     int
	notifyTimeout   time.Duration
	upstreamTimeout time.Duration
}

func NewService(deps ServiceDeps) Service {
	deps.applyDefaults()
	return &service{
		store:           deps.OTPStore,
		users:           deps.UserStore,
		notifier:        deps.Notifier,
		tokens:          deps.Tokens,
		codes:           deps.Codes,
		hasher:          deps.Hasher,
		clock:           deps.Clock,
		locks:           keylock.New(),
		otpTTL:          deps.OTPTTL,
		sessionTTL:      deps.SessionTTL,
		maxAttempts:     deps.MaxAttempts,
		notifyTimeout:   deps.NotifyTimeout,
		upstreamTimeout: deps.UpstreamTimeout,
	}
}

func (s *service) RequestCode(ctx context.Context, req SendOTPRequest) (*SendOTPResult, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	purpose := domain.PurposeFromSignupFlag(req.IsSignup)
	if err := s.checkAccount(ctx, email, purpose); err != nil {
		return nil, err
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(email, code)
	if err != nil {
		return nil, err
	}
	rec := domain.NewOTPRecord(email, hash, purpose, s.clock(), s.otpTTL)

	unlock := s.locks.Lock(email)
	handle, err := s.store.Put(ctx, rec)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("store otp: %w", upstream(err))
	}

	nctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.notifier.SendOTP(nctx, email, code); err != nil {
		slog.Error("otp delivery failed", "email", email, "purpose", purpose, "err", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	slog.Info("otp issued", "email", email, "purpose", purpose)
	return &SendOTPResult{OTPToken: handle}, nil
}

// checkAccount enforces that signup targets a new email and login an existing one.
func (s *service) checkAccount(ctx context.Context, email string, purpose domain.Purpose) error {
	_, err := s.findUser(ctx, email)
	switch {
	case err == nil:
		if purpose == domain.PurposeSignup {
			return domain.ErrAlreadyExists
		}
	case errors.Is(err, domain.ErrNotFound):
		if purpose == domain.PurposeLogin {
			return domain.ErrAccountNotFound
		}
	default:
		return err
	}
	return nil
}

func (s *service) VerifyCode(ctx context.Context, in VerifyInput) (*domain.OTPRecord, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	unlock := s.locks.Lock(email)
	defer unlock()
	return s.verifyCode(ctx, email, in)
}

// verifyCode checks in against the stored record. The caller holds the lock
// for email.
func (s *service) verifyCode(ctx context.Context, email string, in VerifyInput) (*domain.OTPRecord, error) {
	rec, err := s.store.Get(ctx, email, in.Handle)
	if err != nil {
		return nil, storeError(err)
	}
	if rec.Expired(s.clock()) {
		if err := s.store.Consume(ctx, email, in.Handle); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("failed to drop expired otp record", "email", email, "err", err)
		}
		return nil, domain.ErrOTPExpired
	}
	if rec.Exhausted(s.maxAttempts) {
		return nil, domain.ErrTooManyAttempts
	}

	if !s.hasher.Matches(rec.CodeHash, email, in.Code) {
		_, handle, err := s.store.RecordAttempt(ctx, email, in.Handle, s.maxAttempts)
		switch {
		case errors.Is(err, domain.ErrExhausted):
			slog.Warn("otp attempts exhausted", "email", email)
			return nil, attemptError(domain.ErrTooManyAttempts, handle)
		case err != nil:
			return nil, storeError(err)
		}
		return nil, attemptError(domain.ErrInvalidOTP, handle)
	}

	if in.Purpose != "" && rec.Purpose != in.Purpose {
		return nil, domain.ErrWrongPurpose
	}
	if err := s.store.Consume(ctx, email, in.Handle); err != nil {
		return nil, storeError(err)
	}
	return rec, nil
}

func (s *service) CompleteLogin(ctx context.Context, rec *domain.OTPRecord) (string, error) {
	claims := jwtinfra.Claims{
		domain.ClaimEmail: rec.Email,
		domain.ClaimType:  domain.TokenTypeSession,
	}
	u, err := s.findUser(ctx, rec.Email)
	switch {
	case err == nil:
		claims[domain.ClaimUserID] = u.UserID
	case !errors.Is(err, domain.ErrNotFound):
		return "", err
	}
	token, err := s.tokens.Sign(claims, s.sessionTTL)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (s *service) CompleteSignup(ctx context.Context, rec *domain.OTPRecord, username, name string) (*SignupResult, error) {
	unlock := s.locks.Lock(rec.Email)
	defer unlock()
	return s.completeSignup(ctx, rec, username, name)
}

// completeSignup creates the user. The caller holds the lock for rec.Email,
// which makes the existence check and Create one step for this instance.
func (s *service) completeSignup(ctx context.Context, rec *domain.OTPRecord, username, name string) (*SignupResult, error) {
	if rec.Purpose != domain.PurposeSignup {
		return nil, domain.ErrWrongPurpose
	}
	if err := s.checkAccount(ctx, rec.Email, domain.PurposeSignup); err != nil {
		return nil, err
	}

	u := &domain.User{
		UserID:    id.New(),
		Email:     rec.Email,
		Username:  username,
		Name:      name,
		CreatedAt: s.clock().UTC(),
	}
	uctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()
	if err := s.users.Create(uctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", upstream(err))
	}

	token, err := s.tokens.Sign(jwtinfra.Claims{
		domain.ClaimEmail:  u.Email,
		domain.ClaimUserID: u.UserID,
		domain.ClaimType:   domain.TokenTypeSession,
	}, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	slog.Info("user signed up", "user_id", u.UserID, "email", u.Email)
	return &SignupResult{Token: token, User: u}, nil
}

func (s *service) Login(ctx context.Context, req VerifyOTPRequest) (string, error) {
	rec, err := s.VerifyCode(ctx, VerifyInput{Email: req.Email, Code: req.OTP, Handle: req.OTPToken})
	if err != nil {
		return "", err
	}
	return s.CompleteLogin(ctx, rec)
}

// Signup holds the email lock from verification through user creation, so
// concurrent completions with one code or one ticket create a single user.
func (s *service) Signup(ctx context.Context, req CompleteSignupRequest) (*SignupResult, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	unlock := s.locks.Lock(email)
	defer unlock()

	rec, err := s.verifyCode(ctx, email, VerifyInput{
		Email:   email,
		Code:    req.OTP,
		Handle:  req.OTPToken,
		Purpose: domain.PurposeSignup,
	})
	if err != nil {
		return nil, err
	}
	return s.completeSignup(ctx, rec, req.Username, req.Name)
}

// findUser looks the email up with the upstream timeout applied. Errors
// other than not-found are reported as upstream failures.
func (s *service) findUser(ctx context.Context, email string) (*domain.User, error) {
	uctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()
	u, err := s.users.GetByEmail(uctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup user: %w", upstream(err))
	}
	return u, nil
}

// storeError maps store failures onto protocol errors.
func storeError(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrOTPNotSent
	}
	return fmt.Errorf("otp store: %w", upstream(err))
}

func upstream(err error) error {
	if errors.Is(err, domain.ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
}

func attemptError(err error, handle string) error {
	if handle == "" {
		return err
	}
	return &AttemptError{Err: err, Handle: handle}
}
