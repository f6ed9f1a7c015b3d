// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lorenzo-online/lorenzo/internal/auth/postgres"
	"github.com/lorenzo-online/lorenzo/internal/config"
)

// migrator is the part of postgres.Migrator the commands drive.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// migratorFactory opens a migrator for a database URL.
type migratorFactory func(databaseURL string) (migrator, error)

func openMigrator(databaseURL string) (migrator, error) {
	return postgres.NewMigrator(databaseURL)
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return newMigrateCmdWith(load, openMigrator)
}

func newMigrateCmdWith(load configLoader, open migratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL account schema",
		Long: `Manage the PostgreSQL account schema. The database URL comes from
auth.database_url, LORENZO_AUTH_DATABASE_URL or --database-url.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	run := func(fn func(cmd *cobra.Command, m migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("a database URL is required")
			}
			m, err := open(cfg.Auth.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()
			return fn(cmd, m, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: run(func(cmd *cobra.Command, m migrator, _ []string) error {
			pending, err := m.Pending()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				cmd.Println("Schema is up to date")
				return nil
			}
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Printf("Applied %d migration(s)\n", len(pending))
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Drop every account table",
		RunE: run(func(cmd *cobra.Command, m migrator, _ []string) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Rolled back all migrations")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: run(func(cmd *cobra.Command, m migrator, _ []string) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("Version %d (dirty)\n", v)
				return nil
			}
			cmd.Printf("Version %d\n", v)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, m migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			cmd.Printf("Forced version %d\n", v)
			return nil
		}),
	})

	return cmd
}

// parseForceVersion reads a leading integer, ignoring what follows it.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}
