package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"learnauth/internal/auth"
	"learnauth/internal/db"
	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/repository"
)

const testSecret = "test-secret-test-secret-test-secret"

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByProviderLink(ctx context.Context, provider model.Provider, subjectID string) (*model.User, error) {
	args := m.Called(ctx, provider, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) AddProviderLink(ctx context.Context, link *model.ProviderLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockUserRepository) ListProviderLinks(ctx context.Context, userID uint) ([]model.ProviderLink, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProviderLink), args.Error(1)
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id uint, role model.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateActive(ctx context.Context, id uint, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateAvatarURL(ctx context.Context, id uint, url string) error {
	args := m.Called(ctx, id, url)
	return args.Error(0)
}

func (m *MockUserRepository) Stats(ctx context.Context) (*repository.UserStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.UserStats), args.Error(1)
}

func newTestHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost)
}

func newTestTokens() *auth.JWTService {
	return auth.NewJWTService(testSecret)
}

func hashOf(t *testing.T, password string) *string {
	t.Helper()
	h, err := newTestHasher().Hash(password)
	require.NoError(t, err)
	return &h
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.NewSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

// stack wires the real components over a SQLite store.
type stack struct {
	repo     repository.UserRepository
	tokens   *auth.JWTService
	resolver IdentityResolver
	guard    Guard
	auth     AuthService
	users    UserService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	repo := repository.NewUserRepository(newTestDB(t))
	tokens := newTestTokens()
	log := logging.Discard()
	resolver := NewIdentityResolver(repo, log)
	return &stack{
		repo:     repo,
		tokens:   tokens,
		resolver: resolver,
		guard:    NewGuard(tokens, repo, log),
		auth:     NewAuthService(repo, newTestHasher(), tokens, resolver, nil, time.Hour, log),
		users:    NewUserService(repo, nil, log),
	}
}
