package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	apperrors "learnauth/internal/errors"
)

const (
	// MaxPasswordBytes is bcrypt's input limit. Longer passwords are rejected, never truncated.
	MaxPasswordBytes = 72
	// DefaultBcryptCost is used when no cost is configured.
	DefaultBcryptCost = 10
)

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Out-of-range costs fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted bcrypt digest of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", apperrors.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest.
func (h *PasswordHasher) Verify(password, digest string) bool {
	if len(password) > MaxPasswordBytes || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// DummyVerify runs one comparison against a fixed digest of the same cost, so a lookup
// miss costs as much as a wrong password.
func (h *PasswordHasher) DummyVerify(password string) {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), h.cost)
	})
	if len(password) > MaxPasswordBytes {
		password = password[:MaxPasswordBytes]
	}
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}
