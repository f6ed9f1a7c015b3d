// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package config loads Lorenzo's configuration. Layers apply in order:
// built-in defaults, the YAML config file, LORENZO_* environment variables,
// then command-line flags.
package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/internal/tls"
	"github.com/lorenzo-online/lorenzo/internal/xdg"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EnvPrefix prefixes every environment variable, e.g.
// LORENZO_SERVER_GRPC_ADDR.
const EnvPrefix = "LORENZO_"

// Account store kinds.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Client transports.
const (
	TransportGRPC   = "grpc"
	TransportSocket = "socket"
)

// Config is the complete configuration of both the server and the client.
type Config struct {
	Server        Server        `koanf:"server" envPrefix:"SERVER_"`
	Auth          Auth          `koanf:"auth" envPrefix:"AUTH_"`
	Observability Observability `koanf:"observability" envPrefix:"OBSERVABILITY_"`
	Logging       Logging       `koanf:"logging" envPrefix:"LOG_"`
	Client        Client        `koanf:"client" envPrefix:"CLIENT_"`
}

// Server configures `lorenzo serve`.
type Server struct {
	GRPCAddr string `koanf:"grpc_addr" env:"GRPC_ADDR"`
	// SocketAddr is the line-protocol listen address. Empty disables it.
	SocketAddr string `koanf:"socket_addr" env:"SOCKET_ADDR"`
	TLS        bool   `koanf:"tls" env:"TLS"`
	// CertsDir defaults to the XDG certificates directory.
	CertsDir string `koanf:"certs_dir" env:"CERTS_DIR"`
	// Hosts are extra names written into a generated server certificate.
	Hosts             []string      `koanf:"hosts" env:"HOSTS"`
	PlayersPerMatch   int           `koanf:"players_per_match" env:"PLAYERS_PER_MATCH"`
	LobbyWait         time.Duration `koanf:"lobby_wait" env:"LOBBY_WAIT"`
	TurnTimeout       time.Duration `koanf:"turn_timeout" env:"TURN_TIMEOUT"`
	VersionConstraint string        `koanf:"version_constraint" env:"VERSION_CONSTRAINT"`
	// Catalog is a YAML catalog path. Empty uses the built-in catalog.
	Catalog string `koanf:"catalog" env:"CATALOG"`
}

// Auth configures the account store.
type Auth struct {
	Store string `koanf:"store" env:"STORE"`
	// SQLitePath defaults to accounts.db in the XDG data directory.
	SQLitePath    string            `koanf:"sqlite_path" env:"SQLITE_PATH"`
	DatabaseURL   string            `koanf:"database_url" env:"DATABASE_URL"`
	Argon2        auth.Argon2Params `koanf:"argon2" envPrefix:"ARGON2_"`
	Lockout       auth.Lockout      `koanf:"lockout" envPrefix:"LOCKOUT_"`
	ReservedNames []string          `koanf:"reserved_names" env:"RESERVED_NAMES"`
}

// Observability configures the metrics and health server.
type Observability struct {
	// Addr is the listen address. Empty disables the server.
	Addr string `koanf:"addr" env:"ADDR"`
}

// Logging configures the process logger.
type Logging struct {
	Format string `koanf:"format" env:"FORMAT"`
	Level  string `koanf:"level" env:"LEVEL"`
}

// Client configures `lorenzo play`.
type Client struct {
	Address   string `koanf:"address" env:"ADDRESS"`
	Transport string `koanf:"transport" env:"TRANSPORT"`
	TLS       bool   `koanf:"tls" env:"TLS"`
	// CAFile defaults to the CA in the XDG certificates directory.
	CAFile     string `koanf:"ca_file" env:"CA_FILE"`
	ServerName string `koanf:"server_name" env:"SERVER_NAME"`
	LogLevel   string `koanf:"log_level" env:"LOG_LEVEL"`
}

// Sources selects where Load reads from.
type Sources struct {
	// File is a YAML config path. Empty reads xdg.ConfigFile() when it
	// exists; an explicit path must exist.
	File string
	// NoFile skips the config file entirely.
	NoFile bool
	// Flags are applied last. Only flags the user set are used.
	Flags *pflag.FlagSet
	// Env replaces the process environment when non-nil.
	Env map[string]string
}

type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]any, error) {
	return nil, errors.New("bytesProvider does not support Read")
}

// Default returns the built-in configuration with directories resolved.
// It ignores the config file and the environment.
func Default() (*Config, error) {
	return Load(Sources{NoFile: true, Env: map[string]string{}})
}

// Load builds and validates a Config from src.
func Load(src Sources) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(bytesProvider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	var path string
	if !src.NoFile {
		var err error
		if path, err = configFile(src.File); err != nil {
			return nil, err
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", path).Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", path).Wrap(err)
	}

	opts := env.Options{Prefix: EnvPrefix, Environment: src.Env}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}

	if src.Flags != nil {
		if err := applyFlags(&cfg, src.Flags); err != nil {
			return nil, err
		}
	}

	cfg.resolveDirs()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", oops.Code("CONFIG_LOAD_FAILED").With("source", path).Wrap(err)
		}
		return path, nil
	}
	path = xdg.ConfigFile()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		return "", oops.Code("CONFIG_LOAD_FAILED").With("source", path).Wrap(err)
	}
}

func applyFlags(cfg *Config, flags *pflag.FlagSet) error {
	k := koanf.New(".")
	provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}
	return nil
}

func (c *Config) resolveDirs() {
	if c.Server.CertsDir == "" {
		c.Server.CertsDir = xdg.CertsDir()
	}
	if c.Auth.SQLitePath == "" {
		c.Auth.SQLitePath = xdg.AccountsDB()
	}
	if c.Client.CAFile == "" {
		c.Client.CAFile = filepath.Join(c.Server.CertsDir, tls.CAFile)
	}
}
