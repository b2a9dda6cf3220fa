package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// DefaultTokenBytes is the entropy of a verification token. Encoded as
	// hex, the resulting opaque string is twice this length.
	DefaultTokenBytes = 24

	// DefaultTokenTTL is the validity window for verification and
	// password-reset tokens.
	DefaultTokenTTL = 24 * time.Hour
)

// VerifyToken pairs an opaque single-use token with its expiry.
type VerifyToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenGenerator mints cryptographically random opaque tokens with expiry.
type TokenGenerator struct {
	byteLength int
	ttl        time.Duration
}

// NewTokenGenerator constructs a generator. Non-positive arguments fall
// back to the defaults.
func NewTokenGenerator(byteLength int, ttl time.Duration) *TokenGenerator {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenGenerator{byteLength: byteLength, ttl: ttl}
}

// Generate returns a fresh token expiring at now + ttl.
func (g *TokenGenerator) Generate() (VerifyToken, error) {
	buf := make([]byte, g.byteLength)
	if _, err := rand.Read(buf); err != nil {
		return VerifyToken{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return VerifyToken{
		Value:     hex.EncodeToString(buf),
		ExpiresAt: time.Now().Add(g.ttl),
	}, nil
}

// Expired reports whether the expiry moment has passed.
func Expired(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}
