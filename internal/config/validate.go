// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package config

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/internal/logging"
)

func invalid(key string) oops.OopsErrorBuilder {
	return oops.Code("CONFIG_INVALID").With("key", key)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.Client.Validate()
}

// Validate checks the server section.
func (s Server) Validate() error {
	if s.GRPCAddr == "" {
		return invalid("server.grpc_addr").Errorf("gRPC address is required")
	}
	if s.PlayersPerMatch < 2 || s.PlayersPerMatch > 4 {
		return invalid("server.players_per_match").
			With("value", s.PlayersPerMatch).
			Errorf("players per match must be between 2 and 4")
	}
	if s.LobbyWait <= 0 {
		return invalid("server.lobby_wait").Errorf("lobby wait must be positive")
	}
	if s.TurnTimeout < 0 {
		return invalid("server.turn_timeout").Errorf("turn timeout must not be negative")
	}
	if _, err := semver.NewConstraint(s.VersionConstraint); err != nil {
		return invalid("server.version_constraint").Wrap(err)
	}
	return nil
}

// Validate checks the auth section.
func (a Auth) Validate() error {
	switch a.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if a.DatabaseURL == "" {
			return invalid("auth.database_url").Errorf("database URL is required for the postgres store")
		}
	default:
		return invalid("auth.store").
			With("value", a.Store).
			Errorf("store must be memory, sqlite or postgres")
	}
	if err := a.Argon2.Validate(); err != nil {
		return invalid("auth.argon2").Wrap(err)
	}
	if err := a.Lockout.Validate(); err != nil {
		return invalid("auth.lockout").Wrap(err)
	}
	if _, err := auth.NewUsernamePolicy(a.ReservedNames); err != nil {
		return invalid("auth.reserved_names").Wrap(err)
	}
	return nil
}

// Validate checks the logging section.
func (l Logging) Validate() error {
	if l.Format != "json" && l.Format != "text" {
		return invalid("logging.format").
			With("value", l.Format).
			Errorf("log format must be 'json' or 'text', got %q", l.Format)
	}
	if _, err := logging.ParseLevel(l.Level); err != nil {
		return invalid("logging.level").Wrap(err)
	}
	return nil
}

// Validate checks the client section.
func (c Client) Validate() error {
	if c.Transport != TransportGRPC && c.Transport != TransportSocket {
		return invalid("client.transport").
			With("value", c.Transport).
			Errorf("transport must be grpc or socket, got %q", c.Transport)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("client.log_level").Wrap(err)
	}
	return nil
}
