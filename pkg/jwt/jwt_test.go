package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewManager(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := NewManager("too-short", "connecthub", time.Hour)
		assert.Error(t, err)
	})

	t.Run("defaults non-positive duration", func(t *testing.T) {
		m, err := NewManager(testSecret, "connecthub", 0)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, m.duration)
	})
}

func TestIssueAndVerify(t *testing.T) {
	m, err := NewManager(testSecret, "connecthub", time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := m.Issue("user-1", "alice", "alice@example.com", []string{"admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, []string{"admin"}, claims.Roles)
	assert.Equal(t, "connecthub", claims.Issuer)
}

func TestVerify_Failures(t *testing.T) {
	m, err := NewManager(testSecret, "connecthub", time.Hour)
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := m.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewManager("ffffffffffffffffffffffffffffffff", "connecthub", time.Hour)
		require.NoError(t, err)
		token, _, err := other.Issue("user-1", "alice", "alice@example.com", nil)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewManager(testSecret, "someone-else", time.Hour)
		require.NoError(t, err)
		token, _, err := other.Issue("user-1", "alice", "alice@example.com", nil)
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		short, err := NewManager(testSecret, "connecthub", time.Millisecond)
		require.NoError(t, err)
		token, _, err := short.Issue("user-1", "alice", "alice@example.com", nil)
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
