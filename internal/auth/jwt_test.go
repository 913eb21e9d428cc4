package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager([]byte("k"))
	require.NoError(t, err)

	tok, exp, err := m.Issue("uid-1", "ann@example.com", PurposeSession, "", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	c, err := m.Parse(tok, PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", c.Subject)
	assert.Equal(t, "ann@example.com", c.Email)

	_, err = m.Parse(tok, PurposeReset)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Parse(tok+"x", PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	m, err := NewTokenManager([]byte("k"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: "uid-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Purpose:          PurposeSession,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	h, err := HashPassword("hunter22")
	require.NoError(t, err)
	ok, err := CheckPassword(h, "hunter22")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = CheckPassword(h, "hunter23")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "x")
	assert.Error(t, err)
}
