// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewToken returns a fresh identifier for a session or match. Tokens are
// ULIDs, so they sort by issue time.
func NewToken() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ParseToken checks that s is a well-formed token.
func ParseToken(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_TOKEN").With("token", s).Wrap(err)
	}
	return id, nil
}
