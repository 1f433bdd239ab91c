package domain

// Token type claim values. Session tokens and OTP tickets share a signing
// secret, so every token carries its type and consumers check it.
const (
	TokenTypeSession = "session"
	TokenTypeOTP     = "otp"
)

// Session token claim names.
const (
	ClaimEmail  = "email"
	ClaimUserID = "userId"
	ClaimType   = "typ"
)

// Principal is the identity extracted from a verified session token.
type Principal struct {
	Email  string `json:"email"`
	UserID string `json:"id,omitempty"`
}
