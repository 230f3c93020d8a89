package logging

import (
	"log/slog"
	"strings"
)

// Component tags log lines with the emitting component.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// UserID records the user identifier under the key "user_id".
func UserID(id uint) slog.Attr {
	return slog.Uint64("user_id", uint64(id))
}

// Provider records an identity provider name.
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// TokenID records a token's jti. Never log the token itself.
func TokenID(jti string) slog.Attr {
	if jti == "" {
		return slog.Attr{}
	}
	return slog.String("jti", jti)
}

// EmailDomain records only the domain part of an address.
func EmailDomain(email string) slog.Attr {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return slog.Attr{}
	}
	return slog.String("email_domain", email[at+1:])
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}
