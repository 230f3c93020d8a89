package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"learnauth/internal/cache"
	apperrors "learnauth/internal/errors"
	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/repository"
)

const (
	statsCacheKey = "admin:user_stats"
	statsCacheTTL = 30 * time.Second
)

// Profile is the signed-in user's own view: public fields plus which
// sign-in methods are attached. Provider subjects are never included.
type Profile struct {
	model.PublicUser
	IsActive    bool             `json:"is_active"`
	HasPassword bool             `json:"has_password"`
	Providers   []model.Provider `json:"providers" swaggertype:"array,string"`
}

// UserService exposes user lookups and administrative mutations.
type UserService interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	Profile(ctx context.Context, user *model.User) (*Profile, error)
	SetRole(ctx context.Context, id uint, role model.Role) error
	SetActive(ctx context.Context, id uint, active bool) error
	Stats(ctx context.Context) (*repository.UserStats, error)
}

type userService struct {
	repo   repository.UserRepository
	cache  *cache.Client
	logger *slog.Logger
}

// NewUserService builds a UserService with repository and cache. A nil cache disables stats caching.
func NewUserService(repo repository.UserRepository, cache *cache.Client, logger *slog.Logger) UserService {
	return &userService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(logging.Component("user_service")),
	}
}

func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *userService) Profile(ctx context.Context, user *model.User) (*Profile, error) {
	links, err := s.repo.ListProviderLinks(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list provider links: %w", err)
	}
	providers := make([]model.Provider, 0, len(links))
	for _, l := range links {
		providers = append(providers, l.Provider)
	}
	return &Profile{
		PublicUser:  user.Public(),
		IsActive:    user.IsActive,
		HasPassword: user.HasPassword(),
		Providers:   providers,
	}, nil
}

// SetRole changes a user's role. The guard reads the live role, so the change
// applies on the user's next request even with an older token.
func (s *userService) SetRole(ctx context.Context, id uint, role model.Role) error {
	if !role.Valid() {
		return apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", string(role)))
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("update role: %w", err)
	}
	_ = s.cache.Delete(ctx, statsCacheKey)
	s.logger.InfoContext(ctx, "role changed", logging.UserID(id), slog.String("role", string(role)))
	return nil
}

func (s *userService) SetActive(ctx context.Context, id uint, active bool) error {
	if err := s.repo.UpdateActive(ctx, id, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("update active: %w", err)
	}
	_ = s.cache.Delete(ctx, statsCacheKey)
	s.logger.InfoContext(ctx, "active flag changed", logging.UserID(id), slog.Bool("active", active))
	return nil
}

func (s *userService) Stats(ctx context.Context) (*repository.UserStats, error) {
	if data, _ := s.cache.Get(ctx, statsCacheKey); data != nil {
		var cached repository.UserStats
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}

	if payload, err := json.Marshal(stats); err == nil {
		_ = s.cache.Set(ctx, statsCacheKey, payload, statsCacheTTL)
	}
	return stats, nil
}
