package auth

import (
	"context"
	"time"

	"github.com/blog-otp-auth/internal/domain"
	jwtinfra "github.com/blog-otp-auth/internal/infrastructure/jwt"
	"github.com/blog-otp-auth/internal/pkg/otpcode"
)

// OTPStore persists one live OTP record per email. handle is the opaque
// value the client round-trips: empty for server-side stores, the signed
// ticket for the stateless store.
//
// Get and RecordAttempt return an error wrapping domain.ErrNotFound when no
// record exists. RecordAttempt returns domain.ErrTooManyAttempts when the
// increment reaches maxAttempts; the record then stays exhausted until it
// expires or is overwritten. Consume returns domain.ErrNotFound when the
// record was already consumed.
type OTPStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) (handle string, err error)
	Get(ctx context.Context, email, handle string) (*domain.OTPRecord, error)
	RecordAttempt(ctx context.Context, email, handle string, maxAttempts int) (*domain.OTPRecord, string, error)
	Consume(ctx context.Context, email, handle string) error
}

// UserStore is the slice of the document store the protocol relies on.
// GetByEmail wraps domain.ErrNotFound when no user exists; Create wraps
// domain.ErrConflict when the user already exists.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

// Notifier delivers a code out of band.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

type tokenSigner interface {
	Sign(claims jwtinfra.Claims, ttl time.Duration) (string, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

// ServiceDeps wires the orchestrator. Zero durations and limits fall back
// to the protocol defaults.
type ServiceDeps struct {
	OTPStore  OTPStore
	UserStore UserStore
	Notifier  Notifier
	Tokens    tokenSigner
	Codes     codeGenerator
	Hasher    otpcode.Hasher
	Clock     func() time.Time

	OTPTTL          time.Duration
	SessionTTL      time.Duration
	MaxAttempts     int
	NotifyTimeout   time.Duration
	UpstreamTimeout time.Duration
}

const (
	defaultOTPTTL          = 5 * time.Minute
	defaultSessionTTL      = 7 * 24 * time.Hour
	defaultMaxAttempts     = 3
	defaultNotifyTimeout   = 10 * time.Second
	defaultUpstreamTimeout = 5 * time.Second
)

func (d *ServiceDeps) applyDefaults() {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Codes == nil {
		d.Codes = otpcode.NewGenerator()
	}
	if d.Hasher == nil {
		d.Hasher = otpcode.BcryptHasher{}
	}
	if d.OTPTTL <= 0 {
		d.OTPTTL = defaultOTPTTL
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = defaultSessionTTL
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = defaultMaxAttempts
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = defaultNotifyTimeout
	}
	if d.UpstreamTimeout <= 0 {
		d.UpstreamTimeout = defaultUpstreamTimeout
	}
}
