// Package config loads latticed's runtime configuration: server address,
// storage backend, default collection root, and lock TTL. Values come from
// a TOML file read through viper, overridable by LATTICE_-prefixed
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one latticed process.
type Config struct {
	// ListenAddr is the address the HTTP API binds to, e.g. ":8080".
	ListenAddr string `mapstructure:"listen_addr"`

	// Backend selects the SQL dialect: "sqlite", "dolt", "mysql", "postgres",
	// or "sqlserver" (sqlstore.Backend values).
	Backend string `mapstructure:"backend"`

	// DSN is the backend-specific connection string.
	DSN string `mapstructure:"dsn"`

	// DocumentRoot is loaded and defaulted with the rest of the config; no
	// command or handler reads it, and a collection's documentsDirectory is
	// used exactly as the caller gives it.
	DocumentRoot string `mapstructure:"document_root"`

	// LockExpirationSeconds is loaded, defaulted and validated as a lock TTL;
	// no command or handler reads it, and collections created without a TTL
	// get the fixed value 30.
	LockExpirationSeconds int `mapstructure:"lock_expiration_seconds"`
}

// Defaults matches the teacher's convention of an explicit, named default
// value set rather than zero-value fallbacks scattered through the code.
func Defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		Backend:               "sqlite",
		DSN:                   "lattice.db",
		DocumentRoot:          "./data",
		LockExpirationSeconds: 30,
	}
}

// Load reads configuration from path (a TOML file) layered under the
// defaults, then applies LATTICE_-prefixed environment overrides. path may
// be empty, in which case only defaults and environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	def := Defaults()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("backend", def.Backend)
	v.SetDefault("dsn", def.DSN)
	v.SetDefault("document_root", def.DocumentRoot)
	v.SetDefault("lock_expiration_seconds", def.LockExpirationSeconds)

	v.SetEnvPrefix("lattice")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	switch cfg.Backend {
	case "sqlite", "dolt", "mysql", "postgres", "sqlserver":
	default:
		return fmt.Errorf("config: unknown backend %q", cfg.Backend)
	}
	if cfg.DSN == "" {
		return fmt.Errorf("config: dsn is required")
	}
	if cfg.LockExpirationSeconds <= 0 {
		return fmt.Errorf("config: lock_expiration_seconds must be positive")
	}
	return nil
}
