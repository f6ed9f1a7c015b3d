// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

var accountColumns = []string{
	"id", "username", "password_hash", "failed_attempts", "locked_until", "created_at", "updated_at",
}

func testAccount(t *testing.T) *auth.Account {
	t.Helper()
	a, err := auth.NewAccount("alice", "hash", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return a
}

func TestAccountRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, a *auth.Account)
		wantCode  string
		wantIs    error
	}{
		{
			name: "inserts account",
			setupMock: func(mock pgxmock.PgxPoolIface, a *auth.Account) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(a.ID.String(), "alice", "hash", 0, pgxmock.AnyArg(), a.CreatedAt, a.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "unique violation maps to duplicate username",
			setupMock: func(mock pgxmock.PgxPoolIface, _ *auth.Account) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantCode: "ACCOUNT_DUPLICATE",
			wantIs:   auth.ErrDuplicateUsername,
		},
		{
			name: "other errors are wrapped",
			setupMock: func(mock pgxmock.PgxPoolIface, _ *auth.Account) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "ACCOUNT_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			a := testAccount(t)
			tt.setupMock(mock, a)

			err = NewAccountRepository(mock).Create(context.Background(), a)
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				errutil.AssertErrorCode(t, err, tt.wantCode)
			}
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_GetByUsername(t *testing.T) {
	id := ulid.Make()
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	locked := created.Add(15 * time.Minute)

	t.Run("found with lockout", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM accounts\s+WHERE LOWER\(username\) = LOWER\(\$1\)`).
			WithArgs("ALICE").
			WillReturnRows(pgxmock.NewRows(accountColumns).
				AddRow(id.String(), "alice", "hash", 7, &locked, created, created))

		a, err := NewAccountRepository(mock).GetByUsername(context.Background(), "ALICE")
		require.NoError(t, err)
		assert.Equal(t, id, a.ID)
		assert.Equal(t, "alice", a.Username)
		assert.Equal(t, 7, a.FailedAttempts)
		require.NotNil(t, a.LockedUntil)
		assert.True(t, a.LockedUntil.Equal(locked))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("found without lockout", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM accounts`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(accountColumns).
				AddRow(id.String(), "alice", "hash", 0, (*time.Time)(nil), created, created))

		a, err := NewAccountRepository(mock).GetByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Nil(t, a.LockedUntil)
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM accounts`).
			WithArgs("nobody").
			WillReturnRows(pgxmock.NewRows(accountColumns))

		_, err = NewAccountRepository(mock).GetByUsername(context.Background(), "nobody")
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM accounts`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(accountColumns).
				AddRow("not-a-ulid", "alice", "hash", 0, (*time.Time)(nil), created, created))

		_, err = NewAccountRepository(mock).GetByUsername(context.Background(), "alice")
		errutil.AssertErrorCode(t, err, "ACCOUNT_QUERY_FAILED")
	})
}

func TestAccountRepository_Update(t *testing.T) {
	t.Run("updates counters", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		a := testAccount(t)
		a.FailedAttempts = 2
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(a.ID.String(), "hash", 2, pgxmock.AnyArg(), a.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewAccountRepository(mock).Update(context.Background(), a))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = NewAccountRepository(mock).Update(context.Background(), testAccount(t))
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
