package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenGenerator_Generate(t *testing.T) {
	gen := NewTokenGenerator(24, time.Hour)

	before := time.Now()
	token, err := gen.Generate()
	require.NoError(t, err)

	// 24 random bytes, hex encoded.
	assert.Len(t, token.Value, 48)
	assert.True(t, token.ExpiresAt.After(before.Add(59*time.Minute)))
	assert.True(t, token.ExpiresAt.Before(before.Add(61*time.Minute)))
}

func TestTokenGenerator_TokensAreUnique(t *testing.T) {
	gen := NewTokenGenerator(24, time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, err := gen.Generate()
		require.NoError(t, err)
		assert.False(t, seen[token.Value])
		seen[token.Value] = true
	}
}

func TestTokenGenerator_Defaults(t *testing.T) {
	gen := NewTokenGenerator(0, 0)
	assert.Equal(t, DefaultTokenBytes, gen.byteLength)
	assert.Equal(t, DefaultTokenTTL, gen.ttl)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, Expired(now.Add(time.Minute), now))
	assert.True(t, Expired(now.Add(-time.Minute), now))
	assert.True(t, Expired(now, now))
}
