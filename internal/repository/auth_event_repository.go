package repository

import (
	"context"

	"gorm.io/gorm"

	"learnauth/internal/model"
)

// AuthEventRepository persists the sign-in audit trail.
type AuthEventRepository interface {
	Create(ctx context.Context, event *model.AuthEvent) error
	CreateBatch(ctx context.Context, events []model.AuthEvent) error
}

type authEventRepository struct {
	db *gorm.DB
}

// NewAuthEventRepository creates a new auth event repository.
func NewAuthEventRepository(db *gorm.DB) AuthEventRepository {
	return &authEventRepository{db: db}
}

// Create creates a single event.
func (r *authEventRepository) Create(ctx context.Context, event *model.AuthEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// CreateBatch inserts events in chunks of 100.
func (r *authEventRepository) CreateBatch(ctx context.Context, events []model.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, 100).Error
}
