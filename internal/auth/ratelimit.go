// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Lockout defaults.
const (
	// DefaultLockoutDuration is the time an account stays locked.
	DefaultLockoutDuration = 15 * time.Minute

	// DefaultLockoutThreshold is the number of consecutive failures that
	// locks an account.
	DefaultLockoutThreshold = 7
)

// Lockout decides when repeated login failures lock an account.
type Lockout struct {
	Threshold int           `koanf:"threshold" env:"THRESHOLD"`
	Duration  time.Duration `koanf:"duration" env:"DURATION"`
}

// DefaultLockout returns the standard lockout policy.
func DefaultLockout() Lockout {
	return Lockout{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// Validate checks the policy values.
func (l Lockout) Validate() error {
	if l.Threshold <= 0 {
		return oops.Code("AUTH_INVALID_LOCKOUT").With("threshold", l.Threshold).Errorf("lockout threshold must be positive")
	}
	if l.Duration <= 0 {
		return oops.Code("AUTH_INVALID_LOCKOUT").With("duration", l.Duration).Errorf("lockout duration must be positive")
	}
	return nil
}

// Until returns the lockout expiry for the given failure count, or nil if
// the threshold has not been reached.
func (l Lockout) Until(failures int, now time.Time) *time.Time {
	if failures < l.Threshold {
		return nil
	}
	until := now.Add(l.Duration)
	return &until
}

// IsLockedOut reports whether lockedUntil is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// LockoutRemaining returns how long the lockout still lasts, or zero.
func LockoutRemaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if !IsLockedOut(lockedUntil, now) {
		return 0
	}
	return lockedUntil.Sub(now)
}
