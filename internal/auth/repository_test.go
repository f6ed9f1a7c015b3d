// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzo-online/lorenzo/internal/auth"
)

// testRepository exercises the AccountRepository contract.
func testRepository(t *testing.T, repo auth.AccountRepository) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	account, err := auth.NewAccount("Alice", "hash-1", now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, account))

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
		assert.Equal(t, "Alice", got.Username)
		assert.Equal(t, "hash-1", got.PasswordHash)
		assert.Nil(t, got.LockedUntil)
	})

	t.Run("duplicate username", func(t *testing.T) {
		dup, err := auth.NewAccount("ALICE", "hash-2", now)
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("update persists lockout", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		got.RecordFailure(auth.Lockout{Threshold: 1, Duration: time.Hour}, now)
		require.NoError(t, repo.Update(ctx, got))

		again, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, again.FailedAttempts)
		require.NotNil(t, again.LockedUntil)
		assert.True(t, again.LockedUntil.Equal(now.Add(time.Hour)))
	})

	t.Run("update missing account", func(t *testing.T) {
		ghost, err := auth.NewAccount("ghost", "hash", now)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Update(ctx, ghost), auth.ErrNotFound)
	})
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, auth.NewMemoryRepository())
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := auth.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	testRepository(t, repo)
}

func TestSQLiteRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.db")

	repo, err := auth.OpenSQLite(ctx, path)
	require.NoError(t, err)
	account, err := auth.NewAccount("carol", "hash", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, account))
	require.NoError(t, repo.Close())

	// Migrations already applied must not run again.
	repo, err = auth.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
}

func TestOpenSQLite_RecordsSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.db")

	for range 2 {
		repo, err := auth.OpenSQLite(ctx, path)
		require.NoError(t, err)
		require.NoError(t, repo.Close())
	}

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var (
		version int
		dirty   bool
		rows    int
	)
	require.NoError(t, db.QueryRowContext(ctx, `SELECT version, dirty FROM account_migrations`).Scan(&version, &dirty))
	assert.Equal(t, 1, version)
	assert.False(t, dirty)
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_migrations`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := auth.OpenSQLite(context.Background(), " ")
	require.Error(t, err)
}
