package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the validity window of an issued session token.
const DefaultTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned when a session token fails verification:
// bad signature, expired, or malformed claims.
var ErrInvalidToken = errors.New("invalid session token")

// Session is the verified content of a session token.
type Session struct {
	AccountID     uuid.UUID
	ClientContext string
}

type claims struct {
	jwt.RegisteredClaims
	ClientContext string `json:"ctx,omitempty"`
}

// Issuer signs and verifies short-lived bearer session tokens (HS256 JWT).
// The signing key is process-wide configuration loaded once at startup.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer constructs an Issuer. A non-positive ttl falls back to DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token embedding the account ID and an opaque client
// context string (e.g. a user-agent fingerprint).
func (i *Issuer) Issue(accountID uuid.UUID, clientContext string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		ClientContext: clientContext,
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the embedded session.
func (i *Issuer) Verify(tokenString string) (Session, error) {
	parsed := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}

	accountID, err := uuid.Parse(parsed.Subject)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	return Session{AccountID: accountID, ClientContext: parsed.ClientContext}, nil
}
