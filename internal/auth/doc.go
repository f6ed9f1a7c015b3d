// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package auth verifies and registers player credentials.
//
// # Domain Types
//
// Account holds a username, its argon2id password hash and the lockout
// counters. Create accounts with NewAccount, which validates the username;
// repositories receive pre-validated values.
//
// # Services
//
// Service implements CredentialStore on top of an AccountRepository:
//   - MemoryRepository - process-local, used by tests and `lorenzo serve --store memory`
//   - SQLiteRepository - single-file store, the default
//   - postgres.AccountRepository - shared store for several servers
package auth
