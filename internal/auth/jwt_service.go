package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"learnauth/internal/model"
)

const (
	// DefaultAccessTokenTTL is the lifetime of access tokens when none is configured.
	DefaultAccessTokenTTL = 60 * time.Minute
	// DefaultLeeway tolerates clock drift between issuer and validator.
	DefaultLeeway = 60 * time.Second
)

var (
	// ErrTokenExpired is returned when the token is at or past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when the token cannot be parsed or its signature does not verify.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenMissingSubject is returned when the subject claim is absent.
	ErrTokenMissingSubject = errors.New("token missing subject")
)

// Claims represents JWT claims. Subject carries the decimal user id.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims

	UserID uint `json:"-"`
}

// JWTService issues and validates HS256 access tokens. It keeps no per-token state.
type JWTService struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithLeeway sets the allowed clock skew.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) {
		if d >= 0 {
			s.leeway = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string, opts ...Option) *JWTService {
	s := &JWTService{
		secret: []byte(secret),
		leeway: DefaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for userID carrying a snapshot of role.
func (s *JWTService) Issue(userID uint, role model.Role, ttl time.Duration) (string, error) {
	if userID == 0 {
		return "", errors.New("issue token: user id is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("issue token: %w", model.ErrUnknownRole)
	}

	// Numeric dates carry whole seconds. A positive ttl rounds exp up so it
	// always lands after iat.
	now := s.now()
	exp := now.Add(ttl)
	if ttl > 0 {
		exp = ceilSecond(exp)
	}
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and then the claims, returning the token's subject and role.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrTokenMalformed)
	}
	// A token issued with a non-positive lifetime is never valid, leeway or not.
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.Subject == "" {
		return nil, ErrTokenMissingSubject
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrTokenMalformed)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role claim", ErrTokenMalformed)
	}

	claims.UserID = uint(id)
	return claims, nil
}

func ceilSecond(t time.Time) time.Time {
	if f := t.Truncate(time.Second); !f.Equal(t) {
		return f.Add(time.Second)
	}
	return t
}
