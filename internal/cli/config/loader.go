package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "SQLGATE_"

// configFileNames are searched in the working directory, in order.
var configFileNames = []string{"sqlgate.yaml", "sqlgate.yml"}

// sections are the top-level config keys that environment variables can nest under.
var sections = []string{"store", "transaction", "log", "server"}

// flagKeys maps flag names to config keys. Flags not listed here do not
// feed the config.
var flagKeys = map[string]string{
	"store":         "store.type",
	"path":          "store.path",
	"host":          "store.host",
	"port":          "store.port",
	"database":      "store.database",
	"user":          "store.user",
	"password":      "store.password",
	"schema":        "store.schema",
	"phantom":       "transaction.use_phantom_query",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"output":        "output",
	"addr":          "server.addr",
	"jwt-secret":    "server.jwt_secret",
	"jwt-issuer":    "server.issuer",
	"jwt-audience":  "server.audience",
	"shutdown-wait": "server.shutdown_timeout",
}

// Loader loads configuration. The zero value is not usable; use NewLoader.
type Loader struct {
	k        *koanf.Koanf
	fileUsed string
	lookup   func(string) string
}

// NewLoader creates a Loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{k: koanf.New("."), lookup: os.Getenv}
}

// FileUsed returns the path of the config file that was loaded, if any.
func (l *Loader) FileUsed() string {
	return l.fileUsed
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func (l *Loader) Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	l.k = koanf.New(".")
	l.fileUsed = ""

	// 1. Defaults
	def := Default()
	if err := l.k.Load(confmap.Provider(map[string]any{
		"store.type":              def.Store.Type,
		"log.level":               def.Log.Level,
		"log.format":              def.Log.Format,
		"output":                  def.OutputFormat,
		"server.addr":             def.Server.Addr,
		"server.shutdown_timeout": def.Server.ShutdownTimeout.String(),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	l.fileUsed = findConfigFile(cfgFile)
	if l.fileUsed != "" {
		if err := l.k.Load(file.Provider(l.fileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", l.fileUsed, err)
		}
	}

	// 3. Environment variables
	// Transform: SQLGATE_SERVER_JWT_SECRET -> server.jwt_secret
	if err := l.k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if flags != nil {
		if err := l.k.Load(posflag.ProviderWithFlag(flags, ".", l.k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	l.expandStoreEnvVars(&cfg.Store)
	cfg.Server.JWTSecret = l.expandEnvVars(cfg.Server.JWTSecret)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadConfig loads configuration with a fresh Loader.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return NewLoader().Load(cfgFile, flags)
}

// findConfigFile finds the config file to use.
// Priority: explicit path > sqlgate.yaml > sqlgate.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps an environment variable name to a config key. The first
// segment after the prefix selects the section when it names one.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns. Unset variables are left as written.
func (l *Loader) expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := l.lookup(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandStoreEnvVars expands environment variables in sensitive store fields.
func (l *Loader) expandStoreEnvVars(s *core.StoreConfig) {
	s.Password = l.expandEnvVars(s.Password)
	s.User = l.expandEnvVars(s.User)
	s.Host = l.expandEnvVars(s.Host)
	s.Database = l.expandEnvVars(s.Database)
	s.Path = l.expandEnvVars(s.Path)
}
