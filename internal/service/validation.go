package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"learnauth/internal/auth"
	apperrors "learnauth/internal/errors"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 6

var validate = validator.New()

// validateEmail expects an already normalized address.
func validateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=255"); err != nil {
		return apperrors.NewValidationError("email", "must be a valid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperrors.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}
	return nil
}
