// ABOUTME: Tests for JWT verification: round trips, expiry, wrong secrets,
// ABOUTME: and missing claims.

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := NewConnectionToken(secret, "user-42", time.Hour)
	require.NoError(t, err)

	sub, err := NewJWTVerifier(secret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestVerifyRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")

	token, err := NewConnectionToken(secret, "user-42", -time.Minute)
	require.NoError(t, err)

	_, err = NewJWTVerifier(secret).Verify(token)
	assert.True(t, errors.Is(err, ErrExpiredToken))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewConnectionToken([]byte("secret-a"), "user-42", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("secret-b")).Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	_, err := v.Verify("not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = v.Verify("")
	assert.Error(t, err)
}

func TestVerifyRequiresSubject(t *testing.T) {
	secret := []byte("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = NewJWTVerifier(secret).Verify(signed)
	assert.True(t, errors.Is(err, ErrMissingClaim))
}

func TestVerifyRejectsUnexpectedSigningMethod(t *testing.T) {
	// alg "none" must never be accepted.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-42"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("test-secret")).Verify(signed)
	assert.Error(t, err)
}
