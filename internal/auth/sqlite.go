// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema/*.sql
var sqliteSchemaFS embed.FS

const sqliteMigrationTable = "account_migrations"

// SQLiteRepository is an AccountRepository backed by a single SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	backoff func() retry.Backoff
}

// OpenSQLite opens (or creates) the account database at path and applies
// the bundled schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("SQLITE_OPEN_FAILED").Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}

	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db: db,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
		},
	}, nil
}

// Close releases the database.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Create implements AccountRepository.
func (r *SQLiteRepository) Create(ctx context.Context, account *Account) error {
	err := r.write(ctx, `
		INSERT INTO accounts (id, username, username_key, password_hash, failed_attempts, locked_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID.String(),
		account.Username,
		NormalizeUsername(account.Username),
		account.PasswordHash,
		account.FailedAttempts,
		toNullMillis(account.LockedUntil),
		toMillis(account.CreatedAt),
		toMillis(account.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_DUPLICATE").With("username", account.Username).Wrap(ErrDuplicateUsername)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").With("username", account.Username).Wrap(err)
	}
	return nil
}

// GetByUsername implements AccountRepository.
func (r *SQLiteRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	var (
		a           Account
		id          string
		lockedUntil sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, failed_attempts, locked_until, created_at, updated_at
		FROM accounts WHERE username_key = ?`,
		NormalizeUsername(username),
	).Scan(&id, &a.Username, &a.PasswordHash, &a.FailedAttempts, &lockedUntil, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("username", username).Wrap(err)
	}

	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("id", id).Wrap(err)
	}
	a.ID = parsed
	a.LockedUntil = fromNullMillis(lockedUntil)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}

// Update implements AccountRepository.
func (r *SQLiteRepository) Update(ctx context.Context, account *Account) error {
	var affected int64
	err := r.retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `
			UPDATE accounts
			SET password_hash = ?, failed_attempts = ?, locked_until = ?, updated_at = ?
			WHERE username_key = ?`,
			account.PasswordHash,
			account.FailedAttempts,
			toNullMillis(account.LockedUntil),
			toMillis(account.UpdatedAt),
			NormalizeUsername(account.Username),
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("username", account.Username).Wrap(err)
	}
	if affected == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("username", account.Username).Wrap(ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) write(ctx context.Context, query string, args ...any) error {
	return r.retry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	})
}

// retry reruns fn while SQLite reports the database as busy.
func (r *SQLiteRepository) retry(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isSQLiteCode(err, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isSQLiteCode matches err against extended result codes, or against
// primary codes when a code is below 256.
func isSQLiteCode(err error, codes ...int) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	got := sqliteErr.Code()
	for _, code := range codes {
		if got == code || (code < 256 && got&0xff == code) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	return isSQLiteCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// migrateSQLite brings db to the latest embedded schema version. The
// migrate instance is not closed: its driver owns db.
func migrateSQLite(db *sql.DB) error {
	source, err := iofs.New(sqliteSchemaFS, "schema")
	if err != nil {
		return oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: sqliteMigrationTable})
	if err != nil {
		_ = source.Close()
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize sqlite driver").Wrap(err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		_ = source.Close()
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
