package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret-key", time.Hour)

	token, err := svc.Issue("alice@example.com", []string{"USER"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, []string{"USER"}, claims.Roles)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestVerifyExpired(t *testing.T) {
	svc := NewTokenService("test-secret-key", -time.Minute)

	token, err := svc.Issue("alice@example.com", []string{"USER"})
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyWrongKey(t *testing.T) {
	token, err := NewTokenService("key-one", time.Hour).Issue("alice@example.com", []string{"USER"})
	require.NoError(t, err)

	_, err = NewTokenService("key-two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyMalformed(t *testing.T) {
	svc := NewTokenService("test-secret-key", time.Hour)

	for _, bad := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.Verify(bad)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", bad)
	}
}

func TestLifetime(t *testing.T) {
	svc := NewTokenService("test-secret-key", 30*time.Minute)
	assert.Equal(t, 30*time.Minute, svc.Lifetime())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("wrong", hash))
	assert.False(t, CheckPassword("s3cret", "not-a-hash"))
}
