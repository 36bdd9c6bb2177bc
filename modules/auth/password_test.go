package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneuni/oneuni-backend/modules/auth"
)

func TestPasswordHasher(t *testing.T) {
	t.Parallel()

	h := auth.NewPasswordHasher()

	t.Run("hash verifies and never equals the input", func(t *testing.T) {
		t.Parallel()
		hash, err := h.Hash("secret123")
		require.NoError(t, err)
		assert.NotEqual(t, "secret123", hash)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))

		assert.True(t, h.Verify("secret123", hash))
		assert.False(t, h.Verify("secret124", hash))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		t.Parallel()
		a, err := h.Hash("secret123")
		require.NoError(t, err)
		b, err := h.Hash("secret123")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("malformed or empty hash never verifies", func(t *testing.T) {
		t.Parallel()
		assert.False(t, h.Verify("secret123", ""))
		assert.False(t, h.Verify("secret123", "not-a-bcrypt-hash"))
		assert.False(t, h.Verify("", ""))
	})
}
