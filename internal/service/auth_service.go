package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	apperrors "learnauth/internal/errors"
	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/repository"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	DummyVerify(password string)
}

// AuthResult is returned by every successful authentication.
type AuthResult struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type" example:"bearer"`
	ExpiresIn   int64            `json:"expires_in" example:"3600"`
	User        model.PublicUser `json:"user"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	FederatedCallback(ctx context.Context, identity FederatedIdentity) (*AuthResult, error)
	SetPassword(ctx context.Context, userID uint, currentPassword, newPassword string) error
}

type authService struct {
	repo     repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	resolver IdentityResolver
	events   EventRecorder
	ttl      time.Duration
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service. ttl is the access token lifetime.
// events may be nil, which disables the audit trail.
func NewAuthService(
	repo repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	resolver IdentityResolver,
	events EventRecorder,
	ttl time.Duration,
	logger *slog.Logger,
) AuthService {
	return &authService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		resolver: resolver,
		events:   events,
		ttl:      ttl,
		logger:   logger.With(logging.Component("auth_service")),
	}
}

// Register creates a password account and signs it in.
func (s *authService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = model.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.ErrConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: &hash,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// A concurrent registration can still win between the check and the insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", logging.UserID(user.ID), logging.EmailDomain(email))
	s.record(ctx, model.EventRegistered, &user.ID, "")
	return s.issue(user)
}

// Login verifies a password. Every failure is ErrInvalidCredentials so callers
// cannot tell an unknown email from a wrong password.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = model.NormalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.hasher.DummyVerify(password)
		s.record(ctx, model.EventLoginFailed, nil, "")
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !user.HasPassword() {
		s.hasher.DummyVerify(password)
		s.record(ctx, model.EventLoginFailed, &user.ID, "")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, *user.PasswordHash) {
		s.record(ctx, model.EventLoginFailed, &user.ID, "")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.InfoContext(ctx, "login attempt on inactive account", logging.UserID(user.ID))
		s.record(ctx, model.EventLoginFailed, &user.ID, "")
		return nil, apperrors.ErrInvalidCredentials
	}

	s.record(ctx, model.EventLogin, &user.ID, "")
	return s.issue(user)
}

// FederatedCallback signs in a provider identity that has completed the code exchange.
func (s *authService) FederatedCallback(ctx context.Context, identity FederatedIdentity) (*AuthResult, error) {
	user, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		s.logger.InfoContext(ctx, "federated login on inactive account",
			logging.UserID(user.ID),
			logging.Provider(string(identity.Provider)),
		)
		return nil, apperrors.ErrUnauthenticated
	}
	s.record(ctx, model.EventFederatedLogin, &user.ID, string(identity.Provider))
	return s.issue(user)
}

// SetPassword adds a password to a provider-only account, or changes an existing
// one after the current password is proven.
func (s *authService) SetPassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	if user.HasPassword() && !s.hasher.Verify(currentPassword, *user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password updated", logging.UserID(user.ID))
	s.record(ctx, model.EventPasswordChanged, &user.ID, "")
	return nil
}

func (s *authService) record(ctx context.Context, kind model.AuthEventKind, userID *uint, provider string) {
	if s.events == nil {
		return
	}
	s.events.Record(ctx, model.AuthEvent{UserID: userID, Kind: kind, Provider: provider})
}

func (s *authService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Role, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.ttl / time.Second),
		User:        user.Public(),
	}, nil
}
