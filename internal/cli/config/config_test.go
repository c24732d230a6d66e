package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register stores so validation can see them.
	_ "github.com/leapstack-labs/sqlgate/pkg/stores/memstore"
	_ "github.com/leapstack-labs/sqlgate/pkg/stores/sqlite"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "sqlgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("store", "", "")
	fs.String("path", "", "")
	fs.Int("port", 0, "")
	fs.Bool("phantom", false, "")
	fs.String("log-level", "", "")
	fs.StringP("output", "o", "", "")
	fs.String("addr", "", "")
	fs.Bool("verbose", false, "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
store:
  type: sqlite
  path: app.db
  params:
    busy_timeout_ms: 5000
    pragmas:
      foreign_keys: "1"
transaction:
  use_phantom_query: true
log:
  level: debug
  format: json
output: yaml
server:
  addr: ":9000"
  shutdown_timeout: 3s
`)

	loader := NewLoader()
	cfg, err := loader.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlgate.yaml", loader.FileUsed())
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "app.db", cfg.Store.Path)
	assert.EqualValues(t, 5000, cfg.Store.Params["busy_timeout_ms"])
	assert.True(t, cfg.Transaction.UsePhantomQuery)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.Equal(t, "yaml", cfg.OutputFormat)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeConfig(t, dir, `
store:
  type: sqlite
  path: from-file.db
log:
  level: info
output: table
`)

	t.Setenv("SQLGATE_STORE_PATH", "from-env.db")
	t.Setenv("SQLGATE_LOG_LEVEL", "error")
	t.Setenv("SQLGATE_TRANSACTION_USE_PHANTOM_QUERY", "true")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--path", "from-flag.db", "--verbose"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag.db", cfg.Store.Path, "flag beats env")
	assert.Equal(t, "error", cfg.Log.Level, "env beats file")
	assert.Equal(t, "table", cfg.OutputFormat, "file beats default")
	assert.True(t, cfg.Transaction.UsePhantomQuery)
}

func TestLoadConfig_UnchangedFlagsDoNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "output: csv\n")

	flags := testFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.OutputFormat)
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
store:
  type: memory
  user: ${DB_USER}
  password: ${DB_PASSWORD}
  host: ${UNSET_HOST_VAR}
`)
	t.Setenv("DB_USER", "gate")
	t.Setenv("DB_PASSWORD", "s3cret")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "gate", cfg.Store.User)
	assert.Equal(t, "s3cret", cfg.Store.Password)
	assert.Equal(t, "${UNSET_HOST_VAR}", cfg.Store.Host)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{
			name:      "unknown store",
			content:   "store:\n  type: oracle\n",
			errSubstr: "unknown store type",
		},
		{
			name:      "bad log level",
			content:   "log:\n  level: loud\n",
			errSubstr: "invalid log.level",
		},
		{
			name:      "bad output",
			content:   "output: xml\n",
			errSubstr: "invalid output",
		},
		{
			name:      "short jwt secret",
			content:   "server:\n  jwt_secret: short\n",
			errSubstr: "at least 32 bytes",
		},
		{
			name:      "malformed yaml",
			content:   "store: [\n",
			errSubstr: "error reading config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeConfig(t, dir, tt.content)

			_, err := LoadConfig("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SQLGATE_STORE_TYPE", "store.type"},
		{"SQLGATE_SERVER_JWT_SECRET", "server.jwt_secret"},
		{"SQLGATE_TRANSACTION_USE_PHANTOM_QUERY", "transaction.use_phantom_query"},
		{"SQLGATE_OUTPUT", "output"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.in))
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)

	buf.Reset()
	NewLogger(LogConfig{}, &buf).Info("below default level")
	assert.Empty(t, buf.String())
}
