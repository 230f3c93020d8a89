package model

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrMissingEmail is returned when a user is saved without an email.
	ErrMissingEmail = errors.New("user email is required")
	// ErrNoAuthMethod is returned when a user has neither a password hash nor a provider link.
	ErrNoAuthMethod = errors.New("user must have a password or a provider link")
)

// User is the durable identity record.
type User struct {
	ID            uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Email         string         `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash  *string        `json:"-" gorm:"size:255"` // nil for provider-only accounts
	Role          Role           `json:"role" gorm:"type:varchar(32);not null"`
	IsActive      bool           `json:"is_active" gorm:"not null;index"`
	AvatarURL     *string        `json:"avatar_url,omitempty" gorm:"size:1024"`
	ProviderLinks []ProviderLink `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// BeforeSave normalizes the email and rejects roles outside the closed set.
// Partial updates run it against a zero-value model, so empty fields are left alone.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Email != "" {
		u.Email = NormalizeEmail(u.Email)
	}
	if u.Role != "" && !u.Role.Valid() {
		_, err := ParseRole(string(u.Role))
		return err
	}
	return nil
}

// BeforeCreate fills the default role and enforces the creation invariants.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Email == "" {
		return ErrMissingEmail
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.HasPassword() && len(u.ProviderLinks) == 0 {
		return ErrNoAuthMethod
	}
	return nil
}

// PublicUser is the view of a user safe to hand to clients.
type PublicUser struct {
	ID        uint    `json:"id" example:"1"`
	Email     string  `json:"email" example:"a@x.com"`
	Role      Role    `json:"role" swaggertype:"string" example:"user"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Public returns the client-facing view. It never carries the hash or provider subjects.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}
