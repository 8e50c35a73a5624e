package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "identity", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "member")
	require.NoError(t, err)

	id, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, "member", id.Role)
}

func TestJWTRejects(t *testing.T) {
	svc := NewJWTService("secret", "identity", 1)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	foreign, err := NewJWTService("other", "identity", 1).Generate(uuid.New(), "member")
	require.NoError(t, err)
	wrongIssuer, err := NewJWTService("secret", "someone-else", 1).Generate(uuid.New(), "member")
	require.NoError(t, err)
	expired, err := NewJWTService("secret", "identity", -1).Generate(uuid.New(), "member")
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not-a-token",
		"foreign secret": foreign,
		"wrong issuer":   wrongIssuer,
		"expired":        expired,
		"no expiry": sign(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: uuid.NewString(), Issuer: "identity",
		}),
		"subject not a uuid": sign(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "alice", Issuer: "identity", ExpiresAt: exp,
		}),
		"nil subject": sign(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: uuid.Nil.String(), Issuer: "identity", ExpiresAt: exp,
		}),
		"hs512": sign(t, "secret", jwt.SigningMethodHS512, jwt.RegisteredClaims{
			Subject: uuid.NewString(), Issuer: "identity", ExpiresAt: exp,
		}),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTWithoutIssuerCheck(t *testing.T) {
	token, err := NewJWTService("secret", "anyone", 1).Generate(uuid.New(), "")
	require.NoError(t, err)

	_, err = NewJWTService("secret", "", 1).Validate(token)
	assert.NoError(t, err)
}
