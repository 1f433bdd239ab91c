package jwtinfra

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. Callers need both: an expired OTP ticket gets a
// different message than a forged one.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the caller-defined payload of a token.
type Claims map[string]any

// reserved claims are owned by the provider and never returned from Verify.
var reserved = []string{"exp", "iat", "nbf"}

// Provider signs and verifies HS256 JWTs with a server-held secret.
type Provider struct {
	secret []byte
	now    func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithClock overrides the time source used for signing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(secret string, opts ...Option) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	p := &Provider{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Sign returns a compact URL-safe token carrying claims and an expiry ttl from now.
// exp and iat in claims are overwritten. Verify hands integer claims back as
// int64 and fractional ones as float64, whatever Go type they were signed from.
func (p *Provider) Sign(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("sign token: non-positive ttl %s", ttl)
	}
	now := p.now()
	mc := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		mc[k] = v
	}
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(ttl))
	delete(mc, "nbf")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	return token.SignedString(p.secret)
}

// Verify checks the signature and expiry and returns the caller claims.
func (p *Provider) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(p.now),
	)
	mc := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenStr, mc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	out := make(Claims, len(mc))
	for k, v := range mc {
		out[k] = number(v)
	}
	for _, k := range reserved {
		delete(out, k)
	}
	return out, nil
}

// number turns a decoded json.Number into int64 when it is integral, else float64.
func number(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// String returns the string claim k, or "" when absent or not a string.
func (c Claims) String(k string) string {
	s, _ := c[k].(string)
	return s
}

// Int returns the numeric claim k, or 0 when absent or not a number.
func (c Claims) Int(k string) int64 {
	switch v := c[k].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
