// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/internal/auth/postgres"
	"github.com/lorenzo-online/lorenzo/internal/config"
	"github.com/lorenzo-online/lorenzo/internal/xdg"
)

// credentials is an auth.Service plus the release of its store.
type credentials struct {
	*auth.Service
	close func()
}

// openCredentials opens the configured account store. A PostgreSQL store
// is migrated up first.
func openCredentials(ctx context.Context, cfg config.Auth, logger *slog.Logger) (*credentials, error) {
	var (
		repo    auth.AccountRepository
		release = func() {}
	)

	switch cfg.Store {
	case config.StoreMemory:
		repo = auth.NewMemoryRepository()
	case config.StoreSQLite:
		if err := xdg.EnsureDir(filepath.Dir(cfg.SQLitePath)); err != nil {
			return nil, err
		}
		db, err := auth.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo = db
		release = func() {
			if err := db.Close(); err != nil {
				logger.Warn("error closing account database", "error", err)
			}
		}
	case config.StorePostgres:
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo = postgres.NewAccountRepository(pool)
		release = pool.Close
	default:
		return nil, oops.Code("CONFIG_INVALID").With("store", cfg.Store).Errorf("unknown account store %q", cfg.Store)
	}

	svc, err := newAuthService(repo, cfg, logger)
	if err != nil {
		release()
		return nil, err
	}
	logger.Info("account store ready", "store", cfg.Store)
	return &credentials{Service: svc, close: release}, nil
}

func newAuthService(repo auth.AccountRepository, cfg config.Auth, logger *slog.Logger) (*auth.Service, error) {
	hasher, err := auth.NewArgon2idHasher(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	policy, err := auth.NewUsernamePolicy(cfg.ReservedNames)
	if err != nil {
		return nil, err
	}
	return auth.NewService(repo, hasher, policy, auth.WithLockout(cfg.Lockout), auth.WithLogger(logger))
}

func migrateUp(databaseURL string) error {
	migrator, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()
	return migrator.Up()
}
