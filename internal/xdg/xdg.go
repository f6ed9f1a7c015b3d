// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package xdg provides XDG Base Directory paths for Lorenzo.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "lorenzo"

func dir(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the config directory. It holds config.yaml.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	return dir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the data directory. It holds the SQLite account store.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	return dir("XDG_DATA_HOME", ".local", "share")
}

// CertsDir returns the TLS certificates directory.
func CertsDir() string {
	return filepath.Join(ConfigDir(), "certs")
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// AccountsDB returns the default SQLite account store path.
func AccountsDB() string {
	return filepath.Join(DataDir(), "accounts.db")
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("DIR_CREATE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
