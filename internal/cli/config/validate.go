package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validOutputs    = []string{"auto", "table", "json", "yaml", "csv"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Store.Type == "" {
		return fmt.Errorf("store type is required")
	}
	if !adapter.IsRegistered(c.Store.Type) {
		return &adapter.UnknownStoreError{Type: c.Store.Type, Available: adapter.ListStores()}
	}
	if err := oneOf("log.level", c.Log.Level, validLogLevels); err != nil {
		return err
	}
	if err := oneOf("log.format", c.Log.Format, validLogFormats); err != nil {
		return err
	}
	if err := oneOf("output", c.OutputFormat, validOutputs); err != nil {
		return err
	}
	if c.Server.AuthEnabled() && len(c.Server.JWTSecret) < 32 {
		return fmt.Errorf("server.jwt_secret must be at least 32 bytes")
	}
	return nil
}

func oneOf(key, value string, valid []string) error {
	for _, v := range valid {
		if strings.EqualFold(value, v) {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (valid: %s)", key, value, strings.Join(valid, ", "))
}
