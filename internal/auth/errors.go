// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when registering a username that is
// already taken. Usernames compare case-insensitively.
var ErrDuplicateUsername = errors.New("username already taken")

// ErrAccountLocked is returned by Login while an account is locked out.
var ErrAccountLocked = errors.New("account is temporarily locked")
