package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	apperrors "learnauth/internal/errors"
	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/repository"
)

// FederatedIdentity is a provider identity that has already passed the
// provider's code exchange. Only an identity with EmailVerified set may be
// linked to an existing account by email.
type FederatedIdentity struct {
	Provider      model.Provider
	SubjectID     string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// IdentityResolver maps a federated identity onto exactly one local user.
type IdentityResolver interface {
	Resolve(ctx context.Context, identity FederatedIdentity) (*model.User, error)
}

type identityResolver struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewIdentityResolver creates a resolver backed by the user repository.
func NewIdentityResolver(repo repository.UserRepository, logger *slog.Logger) IdentityResolver {
	return &identityResolver{
		repo:   repo,
		logger: logger.With(logging.Component("identity_resolver")),
	}
}

// Resolve looks the identity up by provider subject, then by email, and creates a
// user only when neither matches. A subject match needs no email at all.
// Concurrent callers racing on the same identity all end up with the row that
// won the insert.
func (r *identityResolver) Resolve(ctx context.Context, identity FederatedIdentity) (*model.User, error) {
	identity.SubjectID = strings.TrimSpace(identity.SubjectID)
	if identity.Provider == "" || identity.SubjectID == "" {
		return nil, apperrors.NewValidationError("subject", "provider and subject are required")
	}

	user, err := r.repo.FindByProviderLink(ctx, identity.Provider, identity.SubjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find by provider link: %w", err)
	}

	identity.Email = model.NormalizeEmail(identity.Email)
	if err := validateEmail(identity.Email); err != nil {
		return nil, apperrors.ErrNoEmail
	}

	user, err = r.repo.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		return r.link(ctx, user, identity)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.create(ctx, identity)
	default:
		return nil, fmt.Errorf("find by email: %w", err)
	}
}

func (r *identityResolver) link(ctx context.Context, user *model.User, identity FederatedIdentity) (*model.User, error) {
	if !identity.EmailVerified {
		r.logger.WarnContext(ctx, "refusing to link unverified email to existing user",
			logging.UserID(user.ID),
			logging.Provider(string(identity.Provider)),
		)
		return nil, fmt.Errorf("%w: sign in with the existing account first", apperrors.ErrConflict)
	}

	err := r.repo.AddProviderLink(ctx, &model.ProviderLink{
		Provider:  identity.Provider,
		SubjectID: identity.SubjectID,
		UserID:    user.ID,
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.linkConflict(ctx, user, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("add provider link: %w", err)
	}

	if user.AvatarURL == nil && identity.AvatarURL != "" {
		if err := r.repo.UpdateAvatarURL(ctx, user.ID, identity.AvatarURL); err != nil {
			r.logger.WarnContext(ctx, "store avatar failed", logging.UserID(user.ID), logging.Error(err))
		} else {
			avatar := identity.AvatarURL
			user.AvatarURL = &avatar
		}
	}

	r.logger.InfoContext(ctx, "provider linked to existing user",
		logging.UserID(user.ID),
		logging.Provider(string(identity.Provider)),
	)
	return user, nil
}

// linkConflict handles a unique violation while linking: either another request
// already stored this exact identity, or the user holds a different subject for the provider.
func (r *identityResolver) linkConflict(ctx context.Context, user *model.User, identity FederatedIdentity) (*model.User, error) {
	winner, err := r.repo.FindByProviderLink(ctx, identity.Provider, identity.SubjectID)
	if err == nil {
		return winner, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("re-read provider link: %w", err)
	}
	r.logger.WarnContext(ctx, "user already linked to another subject",
		logging.UserID(user.ID),
		logging.Provider(string(identity.Provider)),
	)
	return nil, apperrors.ErrProviderLinked
}

func (r *identityResolver) create(ctx context.Context, identity FederatedIdentity) (*model.User, error) {
	user := &model.User{
		Email:    identity.Email,
		Role:     model.RoleUser,
		IsActive: true,
		ProviderLinks: []model.ProviderLink{{
			Provider:  identity.Provider,
			SubjectID: identity.SubjectID,
		}},
	}
	if identity.AvatarURL != "" {
		avatar := identity.AvatarURL
		user.AvatarURL = &avatar
	}

	err := r.repo.Create(ctx, user)
	if err == nil {
		r.logger.InfoContext(ctx, "user created from federated login",
			logging.UserID(user.ID),
			logging.Provider(string(identity.Provider)),
			logging.EmailDomain(identity.Email),
		)
		return user, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Lost the race on the email or on the subject; return what the winner stored.
	winner, err := r.repo.FindByProviderLink(ctx, identity.Provider, identity.SubjectID)
	if err == nil {
		return winner, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("re-read provider link: %w", err)
	}
	existing, err := r.repo.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("re-read user by email: %w", err)
	}
	return r.link(ctx, existing, identity)
}
