// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package postgres stores accounts in PostgreSQL for deployments where
// several servers share one set of credentials.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the repository uses, so unit
// tests can substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool and verifies the server is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, username, password_hash, failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID.String(),
		account.Username,
		account.PasswordHash,
		account.FailedAttempts,
		account.LockedUntil,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("username", account.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, failed_attempts, locked_until, created_at, updated_at
		FROM accounts
		WHERE LOWER(username) = LOWER($1)
	`, username)

	var (
		a           auth.Account
		id          string
		lockedUntil *time.Time
	)
	err := row.Scan(&id, &a.Username, &a.PasswordHash, &a.FailedAttempts, &lockedUntil, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}

	a.ID, err = ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "parse account id").
			With("id", id).
			Wrap(err)
	}
	a.LockedUntil = lockedUntil
	return &a, nil
}

// Update stores the password hash and lockout counters.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, failed_attempts = $3, locked_until = $4, updated_at = $5
		WHERE id = $1
	`,
		account.ID.String(),
		account.PasswordHash,
		account.FailedAttempts,
		account.LockedUntil,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("username", account.Username).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", account.Username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}
