package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

var testSigningKey = []byte("test-secret")

func createToken(t *testing.T, subject, email string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Role:  "authenticated",
	})
	tokenStr, err := token.SignedString(testSigningKey)
	require.NoError(t, err)
	return tokenStr
}

func TestParseAccessToken(t *testing.T) {
	t.Run("reads subject and email", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		claims, err := ParseAccessToken(createToken(t, "u1", "alice@example.com", exp))
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.True(t, claims.ExpiresAt.Time.Equal(exp))
	})

	t.Run("expired tokens still parse", func(t *testing.T) {
		claims, err := ParseAccessToken(createToken(t, "u1", "", time.Now().Add(-time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseAccessToken("not-a-jwt")
		require.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := ParseAccessToken(createToken(t, "", "", time.Now().Add(time.Hour)))
		require.ErrorContains(t, err, "no subject")
	})
}

func TestCompleteSession(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	s := &models.Session{AccessToken: createToken(t, "u1", "alice@example.com", exp), RefreshToken: "rt"}

	got := completeSession(s)
	assert.Equal(t, "u1", got.User.ID)
	assert.Equal(t, "alice@example.com", got.User.Email)
	assert.True(t, got.ExpiresAt.Equal(exp))
	assert.Empty(t, s.User.ID, "input must not be modified")

	full := &models.Session{AccessToken: "opaque", ExpiresAt: exp, User: models.User{ID: "u2"}}
	assert.Same(t, full, completeSession(full))
}
