package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation is the class of malformed-input failures. Use ValidationError to carry the field.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when the email is already registered.
	ErrConflict = errors.New("email already registered")
	// ErrProviderLinked is returned when an external identity or provider slot is already claimed.
	ErrProviderLinked = errors.New("provider identity already linked to another account")
	// ErrInvalidCredentials is returned for every failed password login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned when a bearer token does not resolve to an active user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the user's role is outside the allowed set.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNoEmail is returned when a provider did not supply a usable email address.
	ErrNoEmail = errors.New("identity provider did not supply a usable email")
	// ErrUserNotFound is returned by administrative lookups.
	ErrUserNotFound = errors.New("user not found")
)

var (
	// ErrInvalidOAuthState is returned when the OAuth state is unknown, expired or already used.
	ErrInvalidOAuthState = errors.New("invalid or expired oauth state")
	// ErrProviderExchange is returned when the provider rejects the code exchange or profile fetch.
	ErrProviderExchange = errors.New("identity provider exchange failed")
	// ErrUnknownProvider is returned for providers that are not configured.
	ErrUnknownProvider = errors.New("unknown identity provider")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unrecognized is a 500
// whose message never echoes the underlying error.
func MapErrorToHTTP(err error) *HTTPError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return NewHTTPError(http.StatusBadRequest, verr.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, ErrConflict.Error(), "EMAIL_ALREADY_REGISTERED")
	case errors.Is(err, ErrProviderLinked):
		return NewHTTPError(http.StatusConflict, ErrProviderLinked.Error(), "PROVIDER_ALREADY_LINKED")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, ErrForbidden.Error(), "FORBIDDEN")
	case errors.Is(err, ErrNoEmail):
		return NewHTTPError(http.StatusBadRequest, ErrNoEmail.Error(), "NO_EMAIL")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrInvalidOAuthState):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidOAuthState.Error(), "INVALID_OAUTH_STATE")
	case errors.Is(err, ErrProviderExchange):
		return NewHTTPError(http.StatusBadRequest, ErrProviderExchange.Error(), "PROVIDER_EXCHANGE_FAILED")
	case errors.Is(err, ErrUnknownProvider):
		return NewHTTPError(http.StatusNotFound, ErrUnknownProvider.Error(), "UNKNOWN_PROVIDER")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
