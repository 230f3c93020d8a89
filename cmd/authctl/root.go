package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"learnauth/internal/cache"
	"learnauth/internal/config"
	"learnauth/internal/db"
	"learnauth/internal/logging"
	"learnauth/internal/repository"
	"learnauth/internal/service"
)

// app holds what subcommands need. Tests preset users; otherwise it is built
// from the environment before any subcommand runs.
type app struct {
	users   service.UserService
	cleanup func()
}

func newRootCmd(users service.UserService) *cobra.Command {
	a := &app{users: users}

	rootCmd := &cobra.Command{
		Use:   "authctl",
		Short: "learnauth operator CLI",
		Long: `authctl inspects and administers learnauth accounts directly against the
database configured for the server (DB_DRIVER, DATABASE_DSN, REDIS_*).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.users != nil {
				return nil
			}
			return a.connect()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.cleanup != nil {
				a.cleanup()
			}
		},
	}

	rootCmd.AddCommand(newUsersCmd(a))
	return rootCmd
}

func (a *app) connect() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, "text", os.Stderr)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, db.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	a.users = service.NewUserService(repository.NewUserRepository(gormDB), cacheClient, logger)
	a.cleanup = func() {
		_ = cacheClient.Close()
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return nil
}
