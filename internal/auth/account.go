// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Account is a registered player login.
type Account struct {
	ID             ulid.ULID
	Username       string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates an account with a validated username.
func NewAccount(username, passwordHash string, now time.Time) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &Account{
		ID:           ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLocked returns true if the account is locked at now.
func (a *Account) IsLocked(now time.Time) bool {
	return IsLockedOut(a.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets the lockout once
// the policy threshold is reached.
func (a *Account) RecordFailure(l Lockout, now time.Time) {
	a.FailedAttempts++
	a.LockedUntil = l.Until(a.FailedAttempts, now)
	a.UpdatedAt = now
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess(now time.Time) {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = now
}

// NormalizeUsername returns the key usernames are compared by.
func NormalizeUsername(username string) string {
	return strings.ToLower(username)
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateUsername if the
	// username is taken (case-insensitive).
	Create(ctx context.Context, account *Account) error

	// GetByUsername retrieves an account by username (case-insensitive).
	// Returns ErrNotFound if no account matches.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// Update stores the mutable fields of an existing account.
	Update(ctx context.Context, account *Account) error
}
