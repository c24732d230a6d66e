// Package config provides configuration management for the sqlgate CLI.
//
// Configuration is layered with koanf: defaults, then sqlgate.yaml, then
// SQLGATE_* environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	Store        core.StoreConfig        `koanf:"store"`
	Transaction  core.TransactionOptions `koanf:"transaction"`
	Log          LogConfig               `koanf:"log"`
	OutputFormat string                  `koanf:"output"`
	Server       ServerConfig            `koanf:"server"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServerConfig holds configuration for the HTTP gateway.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// JWTSecret enables HS256 bearer authentication when set.
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
	Audience  string `koanf:"audience"`
}

// AuthEnabled reports whether requests must carry a bearer token.
func (s ServerConfig) AuthEnabled() bool {
	return s.JWTSecret != ""
}

// Default configuration values.
const (
	DefaultStoreType       = "sqlite"
	DefaultLogLevel        = "warn"
	DefaultLogFormat       = "text"
	DefaultOutput          = "auto" // Auto-detect: TTY=table, non-TTY=json
	DefaultServerAddr      = "127.0.0.1:8787"
	DefaultShutdownTimeout = 10 * time.Second
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Store:        core.StoreConfig{Type: DefaultStoreType},
		Log:          LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		OutputFormat: DefaultOutput,
		Server: ServerConfig{
			Addr:            DefaultServerAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
	}
}
