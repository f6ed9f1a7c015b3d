// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package config

import (
	"time"

	"github.com/spf13/pflag"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"grpc-addr":          "server.grpc_addr",
	"socket-addr":        "server.socket_addr",
	"tls":                "server.tls",
	"certs-dir":          "server.certs_dir",
	"players":            "server.players_per_match",
	"lobby-wait":         "server.lobby_wait",
	"turn-timeout":       "server.turn_timeout",
	"version-constraint": "server.version_constraint",
	"catalog":            "server.catalog",
	"store":              "auth.store",
	"sqlite-path":        "auth.sqlite_path",
	"database-url":       "auth.database_url",
	"metrics-addr":       "observability.addr",
	"log-format":         "logging.format",
	"log-level":          "logging.level",
	"address":            "client.address",
	"transport":          "client.transport",
	"client-tls":         "client.tls",
	"ca-file":            "client.ca_file",
	"server-name":        "client.server_name",
	"client-log-level":   "client.log_level",
}

// ServerFlags registers the flags of the serve command. Unset flags leave
// the lower layers untouched, so their defaults are only informative.
func ServerFlags(fs *pflag.FlagSet) {
	fs.String("grpc-addr", "localhost:7070", "gRPC listen address")
	fs.String("socket-addr", "localhost:7071", "line-protocol listen address (empty = disabled)")
	fs.Bool("tls", true, "serve gRPC over TLS")
	fs.String("certs-dir", "", "TLS certificates directory (default: XDG_CONFIG_HOME/lorenzo/certs)")
	fs.Int("players", 4, "players per match (2-4)")
	fs.Duration("lobby-wait", 30*time.Second, "time before a smaller match starts")
	fs.Duration("turn-timeout", 2*time.Minute, "time a player has to act (0 = no limit)")
	fs.String("version-constraint", "^1.0.0", "accepted client protocol versions")
	fs.String("catalog", "", "catalog YAML file (default: built-in)")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	StoreFlags(fs)
	LogFlags(fs)
}

// StoreFlags registers the account store flags.
func StoreFlags(fs *pflag.FlagSet) {
	fs.String("store", "sqlite", "account store (memory, sqlite or postgres)")
	fs.String("sqlite-path", "", "SQLite account database (default: XDG_DATA_HOME/lorenzo/accounts.db)")
	fs.String("database-url", "", "PostgreSQL connection URL")
}

// LogFlags registers the logging flags.
func LogFlags(fs *pflag.FlagSet) {
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn or error)")
}

// ClientFlags registers the flags of the play command.
func ClientFlags(fs *pflag.FlagSet) {
	fs.String("address", "localhost:7070", "server address")
	fs.String("transport", "grpc", "transport (grpc or socket)")
	fs.Bool("client-tls", true, "connect to gRPC over TLS")
	fs.String("ca-file", "", "CA certificate (default: XDG_CONFIG_HOME/lorenzo/certs/root-ca.crt)")
	fs.String("server-name", "", "name verified against the server certificate")
	fs.String("client-log-level", "warn", "log level of the client")
}
