package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "learnauth/internal/errors"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, "secret123", digest)
	assert.True(t, hasher.Verify("secret123", digest))
	assert.False(t, hasher.Verify("secret124", digest))
	assert.False(t, hasher.Verify("", digest))
	assert.False(t, hasher.Verify("secret123", ""))
}

func TestPasswordHasher_SaltedPerCall(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	first, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("same-password", first))
	assert.True(t, hasher.Verify("same-password", second))
}

func TestPasswordHasher_EmbedsCost(t *testing.T) {
	hasher := NewPasswordHasher(5)

	digest, err := hasher.Hash("secret123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
}

func TestPasswordHasher_LengthLimit(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	tests := []struct {
		name      string
		password  string
		expectErr bool
	}{
		{name: "exactly 72 bytes", password: strings.Repeat("a", MaxPasswordBytes)},
		{name: "73 bytes", password: strings.Repeat("a", MaxPasswordBytes+1), expectErr: true},
		// 36 two-byte runes is 72 bytes; one more crosses the limit.
		{name: "multibyte at limit", password: strings.Repeat("é", 36)},
		{name: "multibyte over limit", password: strings.Repeat("é", 37), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest, err := hasher.Hash(tt.password)
			if tt.expectErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				var verr *apperrors.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "password", verr.Field)
				assert.Empty(t, digest)
				return
			}
			require.NoError(t, err)
			assert.True(t, hasher.Verify(tt.password, digest))
		})
	}
}

func TestPasswordHasher_NoTruncationCollision(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)
	prefix := strings.Repeat("x", MaxPasswordBytes)

	digest, err := hasher.Hash(prefix)
	require.NoError(t, err)

	assert.False(t, hasher.Verify(prefix+"tail", digest))
}

func TestPasswordHasher_DummyVerify(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	assert.NotPanics(t, func() {
		hasher.DummyVerify("anything")
		hasher.DummyVerify(strings.Repeat("z", 100))
	})
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 12, NewPasswordHasher(12).cost)
}
