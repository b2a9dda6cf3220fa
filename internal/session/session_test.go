package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_IssueAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	accountID := uuid.New()

	token, err := issuer.Issue(accountID, "test-agent/1.0")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, sess.AccountID)
	assert.Equal(t, "test-agent/1.0", sess.ClientContext)
}

func TestIssuer_VerifyWrongSecret(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	other := NewIssuer("other-secret", time.Hour)

	token, err := issuer.Issue(uuid.New(), "")
	require.NoError(t, err)

	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_VerifyExpiredToken(t *testing.T) {
	issuer := NewIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(uuid.New(), "")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_VerifyGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	_, err := issuer.Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_VerifyTamperedToken(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(uuid.New(), "")
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = issuer.Verify(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_DefaultTTL(t *testing.T) {
	issuer := NewIssuer("test-secret", 0)
	assert.Equal(t, DefaultTTL, issuer.ttl)
}
