// Package otpcode generates and hashes numeric one-time codes.
package otpcode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Min and Max bound the generated code, inclusive.
	Min = 100000
	Max = 999999
	// Length is the number of digits in every code.
	Length = 6
)

var span = big.NewInt(Max - Min + 1)

// Generator produces codes from a random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator { return &Generator{rand: rand.Reader} }

// NewGeneratorFrom returns a Generator reading from r. Intended for tests.
func NewGeneratorFrom(r io.Reader) *Generator { return &Generator{rand: r} }

// Generate returns a code uniform over [Min, Max].
func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(g.rand, span)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+Min), nil
}

// Hasher turns a code into the form a store keeps, bound to the email it
// was issued for.
type Hasher interface {
	Hash(email, code string) (string, error)
	Matches(hash, email, code string) bool
}

// BcryptHasher is used by server-side stores.
type BcryptHasher struct {
	Cost int // bcrypt.DefaultCost when zero
}

func (h BcryptHasher) Hash(email, code string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(email+":"+code), cost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(out), nil
}

func (h BcryptHasher) Matches(hash, email, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(email+":"+code)) == nil
}

// HMACHasher is used for codes carried inside client-held tickets: without
// the key the 6-digit space cannot be searched offline.
type HMACHasher struct {
	key []byte
}

// NewHMACHasher derives a digest key from secret so the raw signing secret
// is not reused directly.
func NewHMACHasher(secret string) *HMACHasher {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte("otp-code-digest"))
	return &HMACHasher{key: m.Sum(nil)}
}

func (h *HMACHasher) Hash(email, code string) (string, error) {
	return base64.RawURLEncoding.EncodeToString(h.sum(email, code)), nil
}

func (h *HMACHasher) Matches(hash, email, code string) bool {
	want, err := base64.RawURLEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	return hmac.Equal(want, h.sum(email, code))
}

func (h *HMACHasher) sum(email, code string) []byte {
	m := hmac.New(sha256.New, h.key)
	m.Write([]byte(email))
	m.Write([]byte{0})
	m.Write([]byte(code))
	return m.Sum(nil)
}
