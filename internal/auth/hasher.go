// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

const (
	argon2SaltLen = 16 // salt length in bytes
	argon2KeyLen  = 32 // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an encoded hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be recomputed with the
	// current parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time      uint32 `koanf:"time" env:"TIME"`
	MemoryKiB uint32 `koanf:"memory_kib" env:"MEMORY_KIB"`
	Threads   uint8  `koanf:"threads" env:"THREADS"`
}

// DefaultArgon2Params returns the OWASP-recommended parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}
}

// Validate checks that every parameter is usable.
func (p Argon2Params) Validate() error {
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return oops.Code("AUTH_INVALID_HASH_PARAMS").
			With("time", p.Time).
			With("memory_kib", p.MemoryKiB).
			With("threads", p.Threads).
			Errorf("argon2 parameters must be positive")
	}
	return nil
}

func (p Argon2Params) encode() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.MemoryKiB, p.Time, p.Threads)
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with the given parameters.
func NewArgon2idHasher(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces a PHC-encoded argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$%s$%s$%s",
		argon2.Version,
		h.params.encode(),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

type decodedHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeHash(encoded string) (*decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<30 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &decodedHash{
		params: Argon2Params{Time: iterations, MemoryKiB: memory, Threads: uint8(threads)},
		salt:   salt,
		key:    key,
	}, nil
}

// Verify checks if the password matches the hash, using the parameters
// recorded in the hash rather than the hasher's own.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	d, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.MemoryKiB, d.params.Threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id or was produced
// with different parameters.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	d, err := decodeHash(encodedHash)
	if err != nil {
		return true
	}
	return d.params != h.params
}
