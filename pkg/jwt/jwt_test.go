package jwt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneuni/oneuni-backend/pkg/jwt"
)

type testClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("with signing key", func(t *testing.T) {
		codec, err := jwt.New([]byte("0123456789abcdef0123456789abcdef"))
		require.NoError(t, err)
		require.NotNil(t, codec)
	})

	t.Run("empty signing key", func(t *testing.T) {
		codec, err := jwt.New(nil)
		require.ErrorIs(t, err, jwt.ErrMissingSigningKey)
		require.Nil(t, codec)
	})
}

func TestSignVerify(t *testing.T) {
	t.Parallel()

	codec, err := jwt.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		claims := testClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				Issuer:    "oneuni",
				ExpiresAt: time.Now().Add(time.Hour).Unix(),
			},
			Email: "alice@example.com",
			Role:  "student",
		}

		token, err := codec.Sign(claims)
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, "."), 3)

		var parsed testClaims
		require.NoError(t, codec.Verify(token, &parsed))
		assert.Equal(t, "user-1", parsed.Subject)
		assert.Equal(t, "alice@example.com", parsed.Email)
		assert.Equal(t, "student", parsed.Role)
	})

	t.Run("nil claims", func(t *testing.T) {
		_, err := codec.Sign(nil)
		require.ErrorIs(t, err, jwt.ErrMissingClaims)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := codec.Sign(testClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: time.Now().Add(-time.Minute).Unix(),
			},
		})
		require.NoError(t, err)

		var parsed testClaims
		require.ErrorIs(t, codec.Verify(token, &parsed), jwt.ErrTokenExpired)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := codec.Sign(testClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: time.Now().Add(time.Hour).Unix(),
			},
		})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"
		tampered := strings.Join(parts, ".")

		var parsed testClaims
		require.ErrorIs(t, codec.Verify(tampered, &parsed), jwt.ErrInvalidSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := jwt.New([]byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)

		token, err := codec.Sign(testClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		})
		require.NoError(t, err)

		var parsed testClaims
		require.ErrorIs(t, other.Verify(token, &parsed), jwt.ErrInvalidSignature)
	})

	t.Run("malformed token", func(t *testing.T) {
		var parsed testClaims
		require.ErrorIs(t, codec.Verify("not-a-token", &parsed), jwt.ErrMalformedToken)
	})
}
