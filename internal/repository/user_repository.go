package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnauth/internal/model"
)

// UserRepository defines persistence operations on users and their provider links.
// Unique-constraint violations surface as gorm.ErrDuplicatedKey and lookups that match
// nothing as gorm.ErrRecordNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByProviderLink(ctx context.Context, provider model.Provider, subjectID string) (*model.User, error)
	AddProviderLink(ctx context.Context, link *model.ProviderLink) error
	ListProviderLinks(ctx context.Context, userID uint) ([]model.ProviderLink, error)
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
	UpdateRole(ctx context.Context, id uint, role model.Role) error
	UpdateActive(ctx context.Context, id uint, active bool) error
	UpdateAvatarURL(ctx context.Context, id uint, url string) error
	Stats(ctx context.Context) (*UserStats, error)
}

// UserStats aggregates user counts for the admin dashboard.
type UserStats struct {
	Total      int64                    `json:"total"`
	Active     int64                    `json:"active"`
	ByRole     map[model.Role]int64     `json:"by_role"`
	ByProvider map[model.Provider]int64 `json:"by_provider"`
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts the user and any provider links in one transaction.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Links are inserted explicitly: gorm's association save would upsert and hide conflicts.
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}
		for i := range user.ProviderLinks {
			user.ProviderLinks[i].UserID = user.ID
			if err := tx.Create(&user.ProviderLinks[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByProviderLink(ctx context.Context, provider model.Provider, subjectID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN provider_links ON provider_links.user_id = users.id").
		Where("provider_links.provider = ? AND provider_links.subject_id = ?", provider, subjectID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) AddProviderLink(ctx context.Context, link *model.ProviderLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *userRepository) ListProviderLinks(ctx context.Context, userID uint) ([]model.ProviderLink, error) {
	var links []model.ProviderLink
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("provider").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	return r.updateColumn(ctx, id, "password_hash", hash)
}

func (r *userRepository) UpdateRole(ctx context.Context, id uint, role model.Role) error {
	if !role.Valid() {
		_, err := model.ParseRole(string(role))
		return err
	}
	return r.updateColumn(ctx, id, "role", role)
}

func (r *userRepository) UpdateActive(ctx context.Context, id uint, active bool) error {
	return r.updateColumn(ctx, id, "is_active", active)
}

func (r *userRepository) UpdateAvatarURL(ctx context.Context, id uint, url string) error {
	return r.updateColumn(ctx, id, "avatar_url", url)
}

func (r *userRepository) updateColumn(ctx context.Context, id uint, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the value is unchanged.
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Stats(ctx context.Context) (*UserStats, error) {
	db := r.db.WithContext(ctx)
	stats := &UserStats{
		ByRole:     make(map[model.Role]int64),
		ByProvider: make(map[model.Provider]int64),
	}

	var roles []struct {
		Role  model.Role
		Count int64
	}
	if err := db.Model(&model.User{}).Select("role, count(*) AS count").Group("role").Scan(&roles).Error; err != nil {
		return nil, err
	}
	for _, row := range roles {
		stats.ByRole[row.Role] = row.Count
		stats.Total += row.Count
	}

	if err := db.Model(&model.User{}).Where("is_active = ?", true).Count(&stats.Active).Error; err != nil {
		return nil, err
	}

	var providers []struct {
		Provider model.Provider
		Count    int64
	}
	if err := db.Model(&model.ProviderLink{}).Select("provider, count(*) AS count").Group("provider").Scan(&providers).Error; err != nil {
		return nil, err
	}
	for _, row := range providers {
		stats.ByProvider[row.Provider] = row.Count
	}
	return stats, nil
}
