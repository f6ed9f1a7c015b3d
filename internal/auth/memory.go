// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// MemoryRepository is a process-local AccountRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]Account)}
}

// Create implements AccountRepository.
func (r *MemoryRepository) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := NormalizeUsername(account.Username)
	if _, ok := r.accounts[key]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("username", account.Username).Wrap(ErrDuplicateUsername)
	}
	r.accounts[key] = *account
	return nil
}

// GetByUsername implements AccountRepository.
func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[NormalizeUsername(username)]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(ErrNotFound)
	}
	return &account, nil
}

// Update implements AccountRepository.
func (r *MemoryRepository) Update(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := NormalizeUsername(account.Username)
	if _, ok := r.accounts[key]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("username", account.Username).Wrap(ErrNotFound)
	}
	r.accounts[key] = *account
	return nil
}
