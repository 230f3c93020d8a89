package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"learnauth/internal/auth"
	apperrors "learnauth/internal/errors"
	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/repository"
)

// TokenIssuer issues and validates access tokens.
type TokenIssuer interface {
	Issue(userID uint, role model.Role, ttl time.Duration) (string, error)
	Validate(token string) (*auth.Claims, error)
}

// Guard resolves bearer tokens to live users and enforces role sets.
type Guard interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
	Authorize(user *model.User, allowed model.RoleSet) (*model.User, error)
}

type guard struct {
	tokens TokenIssuer
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewGuard creates an authorization guard.
func NewGuard(tokens TokenIssuer, repo repository.UserRepository, logger *slog.Logger) Guard {
	return &guard{
		tokens: tokens,
		repo:   repo,
		logger: logger.With(logging.Component("guard")),
	}
}

// Authenticate validates the token and loads its subject. Validation failures,
// deleted users and inactive users are all ErrUnauthenticated; store failures are not.
func (g *guard) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := g.tokens.Validate(token)
	if err != nil {
		g.logger.DebugContext(ctx, "token rejected", logging.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}

	user, err := g.repo.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		g.logger.InfoContext(ctx, "token subject no longer exists", logging.UserID(claims.UserID), logging.TokenID(claims.ID))
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load token subject: %w", err)
	}
	if !user.IsActive {
		g.logger.InfoContext(ctx, "inactive user presented token", logging.UserID(user.ID), logging.TokenID(claims.ID))
		return nil, apperrors.ErrUnauthenticated
	}
	return user, nil
}

// Authorize checks the user's current role, not the role snapshot in the token.
func (g *guard) Authorize(user *model.User, allowed model.RoleSet) (*model.User, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if !allowed.Contains(user.Role) {
		return nil, apperrors.ErrForbidden
	}
	return user, nil
}
