package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(3, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
	assert.Equal(t, "3", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestJWTRejects(t *testing.T) {
	good, err := GenerateJWT(3, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(good, "other-secret")
	assert.Error(t, err, "wrong secret")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 3,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 3}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(noExpiry, "secret")
	assert.Error(t, err, "expiry is required")

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID:           3,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(hs512, "secret")
	assert.Error(t, err, "only HS256 is accepted")
}
