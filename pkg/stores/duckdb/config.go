package duckdb

import (
	"fmt"
	"regexp"

	"github.com/leapstack-labs/sqlgate/pkg/stores/sqlstore"
)

// identifierRE matches names that are spliced into setup SQL unquoted.
var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Params holds DuckDB-specific configuration.
// Parsed from core.StoreConfig.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings applied at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account"
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region"`

	// Scope is a single path or a list of paths.
	Scope any `mapstructure:"scope"`

	KeyID    string `mapstructure:"key_id"`
	Secret   string `mapstructure:"secret"`
	Endpoint string `mapstructure:"endpoint"`

	// URLStyle: "vhost" or "path"
	URLStyle string `mapstructure:"url_style"`

	UseSSL *bool `mapstructure:"use_ssl"`
}

// ParseParams decodes the store params map.
func ParseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if err := sqlstore.DecodeParams(params, p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the names that appear unquoted in setup SQL: extensions,
// setting names, and secret types and providers.
func (p *Params) Validate() error {
	for _, ext := range p.Extensions {
		if !identifierRE.MatchString(ext) {
			return fmt.Errorf("invalid extension name %q", ext)
		}
	}
	for name := range p.Settings {
		if !identifierRE.MatchString(name) {
			return fmt.Errorf("invalid setting name %q", name)
		}
	}
	for i, secret := range p.Secrets {
		if !identifierRE.MatchString(secret.Type) {
			return fmt.Errorf("secret %d: invalid type %q", i, secret.Type)
		}
		if secret.Provider != "" && !identifierRE.MatchString(secret.Provider) {
			return fmt.Errorf("secret %d: invalid provider %q", i, secret.Provider)
		}
	}
	return nil
}
