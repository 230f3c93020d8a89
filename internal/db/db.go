package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"learnauth/internal/logging"
	"learnauth/internal/model"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Option configures a connection.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	slowThreshold time.Duration
}

// WithLogger sends gorm's statement log to l instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSlowThreshold sets the duration above which a statement is logged as slow.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) { o.slowThreshold = d }
}

func gormConfig(opts []Option) *gorm.Config {
	o := options{slowThreshold: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &gorm.Config{
		// Unique violations come back as gorm.ErrDuplicatedKey on every driver.
		TranslateError: true,
		// Bound values include password hashes and emails; only the SQL text is logged.
		Logger: logger.NewSlogLogger(o.logger.With(logging.Component("gorm")), logger.Config{
			SlowThreshold:             o.slowThreshold,
			LogLevel:                  logger.Warn,
			ParameterizedQueries:      true,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Open connects using the named driver.
func Open(driver, dsn string, opts ...Option) (*gorm.DB, error) {
	switch driver {
	case DriverMySQL:
		return NewMySQL(dsn, opts...)
	case DriverPostgres:
		return NewPostgres(dsn, opts...)
	case DriverSQLite:
		return NewSQLite(dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewMySQL returns a connected GORM DB instance.
func NewMySQL(dsn string, opts ...Option) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// NewPostgres returns a connected GORM DB instance backed by pgx.
func NewPostgres(dsn string, opts ...Option) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewSQLite opens a pure-Go SQLite database. SQLite allows one writer at a time,
// so the pool is capped at a single connection.
func NewSQLite(dsn string, opts ...Option) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate creates or updates the identity and audit tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.ProviderLink{}, &model.AuthEvent{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
