// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// DefaultReservedUsernames are names nobody may register.
var DefaultReservedUsernames = []string{"admin*", "root", "server", "system", "lorenzo*", "moderator*"}

// UsernamePolicy decides which usernames may be registered. Patterns are
// glob expressions matched case-insensitively.
type UsernamePolicy struct {
	patterns []string
	reserved []glob.Glob
}

// NewUsernamePolicy compiles the reserved-name patterns.
func NewUsernamePolicy(reserved []string) (*UsernamePolicy, error) {
	p := &UsernamePolicy{}
	for _, pattern := range reserved {
		g, err := glob.Compile(NormalizeUsername(pattern))
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_POLICY").With("pattern", pattern).Wrap(err)
		}
		p.patterns = append(p.patterns, pattern)
		p.reserved = append(p.reserved, g)
	}
	return p, nil
}

// Check returns an error if username is malformed or reserved.
func (p *UsernamePolicy) Check(username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	key := NormalizeUsername(username)
	for i, g := range p.reserved {
		if g.Match(key) {
			return oops.Code("AUTH_RESERVED_USERNAME").
				With("pattern", p.patterns[i]).
				Errorf("username %q is reserved", username)
		}
	}
	return nil
}
