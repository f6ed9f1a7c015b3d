// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// CredentialStore verifies and registers player credentials.
type CredentialStore interface {
	// Login reports whether the credentials are valid. It returns an error
	// wrapping ErrAccountLocked while the account is locked out.
	Login(ctx context.Context, username, password string) (bool, error)

	// Register creates an account. It returns an error wrapping
	// ErrDuplicateUsername if the username is taken.
	Register(ctx context.Context, username, password string) (bool, error)
}

// dummyPasswordHash is verified when a user doesn't exist so that response
// time does not reveal which usernames are registered. It never matches.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service implements CredentialStore over an AccountRepository.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	policy   *UsernamePolicy
	lockout  Lockout
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLockout overrides the default lockout policy.
func WithLockout(l Lockout) ServiceOption {
	return func(s *Service) { s.lockout = l }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. The policy may be nil to accept every
// well-formed username.
func NewService(accounts AccountRepository, hasher PasswordHasher, policy *UsernamePolicy, opts ...ServiceOption) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if policy == nil {
		policy = &UsernamePolicy{}
	}
	s := &Service{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		lockout:  DefaultLockout(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger is required")
	}
	if err := s.lockout.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Login verifies the credentials. Unknown usernames and wrong passwords
// both return (false, nil) after the same amount of hashing work.
func (s *Service) Login(ctx context.Context, username, password string) (bool, error) {
	account, lookupErr := s.accounts.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		return false, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by username").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if account == nil {
			return false, nil
		}
		return false, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	now := s.now()
	if account == nil || !valid {
		if account != nil {
			account.RecordFailure(s.lockout, now)
			s.bestEffortUpdate(ctx, account, "record login failure")
		}
		return false, nil
	}

	// Lockout is checked after verification to keep timing constant.
	if account.IsLocked(now) {
		return false, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", account.LockedUntil).
			With("remaining", LockoutRemaining(account.LockedUntil, now)).
			Wrap(ErrAccountLocked)
	}

	account.RecordSuccess(now)
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if upgraded, err := s.hasher.Hash(password); err == nil {
			account.PasswordHash = upgraded
		}
	}
	s.bestEffortUpdate(ctx, account, "record login success")
	return true, nil
}

// Register creates an account for username.
func (s *Service) Register(ctx context.Context, username, password string) (bool, error) {
	if err := s.policy.Check(username); err != nil {
		return false, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}

	account, err := NewAccount(username, hash, s.now())
	if err != nil {
		return false, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return false, err
		}
		return false, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			With("username", username).
			Wrap(err)
	}
	return true, nil
}

func (s *Service) bestEffortUpdate(ctx context.Context, account *Account, operation string) {
	if err := s.accounts.Update(ctx, account); err != nil {
		s.logger.WarnContext(ctx, "account update failed",
			"operation", operation,
			"username", account.Username,
			"error", err,
		)
	}
}
