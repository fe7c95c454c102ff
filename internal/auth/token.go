// ABOUTME: Connection tokens for the WebSocket handshake: HS256 JWTs whose
// ABOUTME: subject names the user the connection is allowed to act for.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenVerifier checks a handshake token and returns the user it was issued
// for. The server compares that user against the userId the connection claims.
type TokenVerifier interface {
	Verify(tokenString string) (userID string, err error)
}

// JWTVerifier implements TokenVerifier for HS256-signed connection tokens.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates signature and expiry and returns the subject user id.
// Only HMAC tokens are accepted; asymmetric and "none" algorithms fail.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return claims.Subject, nil
}

// NewConnectionToken issues a handshake token for a user. The hub never mints
// tokens itself; this serves the token subcommand and tests.
func NewConnectionToken(secret []byte, userID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
