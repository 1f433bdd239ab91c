package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string for user IDs. ULIDs sort by creation time
// and are safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewTokenID returns a random UUIDv4 for the jti claim of OTP tickets.
func NewTokenID() string {
	return uuid.NewString()
}
