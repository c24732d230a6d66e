package core

import (
	"context"
	"fmt"
)

// Directives sent to Store.Exec.
const (
	DirectiveBegin    = "BEGIN"
	DirectiveCommit   = "COMMIT"
	DirectiveRollback = "ROLLBACK"
)

// Store is the underlying transactional data store. The gateway is its only
// caller and never invokes it concurrently.
type Store interface {
	// Provider names the SQL flavor of the store (e.g. "sqlite").
	Provider() string

	// Prepare prepares a statement for binding.
	Prepare(sql string) PreparedStatement

	// Exec runs a transaction directive such as COMMIT or ROLLBACK.
	Exec(ctx context.Context, directive string) error
}

// PreparedStatement is a statement awaiting its bind parameters.
type PreparedStatement interface {
	Bind(args ...any) BoundStatement
}

// BoundStatement is a statement ready to run.
type BoundStatement interface {
	// All runs the statement and returns every row together with change metadata.
	All(ctx context.Context) (*Response, error)
}

// Response is the raw answer of a store to a statement.
// Columns is reported independently of Rows so empty results keep their shape.
type Response struct {
	Meta        Meta
	Columns     []string
	ColumnTypes []ColumnType
	Rows        [][]any
}

// Meta carries statement metadata. Nil fields were not reported by the store.
type Meta struct {
	Changes   *int64
	LastRowID *int64
}

// StoreError is a store failure with an engine-specific numeric code.
// Store implementations wrap driver errors into it so the gateway can classify them.
type StoreError struct {
	Code    int
	Message string
	Cause   error
}

// RawCode returns the engine code.
func (e *StoreError) RawCode() int {
	return e.Code
}

func (e *StoreError) Error() string {
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// StoreConfig holds configuration for opening a store.
type StoreConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// String renders the config without its password.
func (c StoreConfig) String() string {
	if c.Host != "" {
		return fmt.Sprintf("%s://%s@%s:%d/%s", c.Type, c.User, c.Host, c.Port, c.Database)
	}
	path := c.Path
	if path == "" {
		path = ":memory:"
	}
	return fmt.Sprintf("%s:%s", c.Type, path)
}

// TransactionOptions configures how a transaction is opened.
type TransactionOptions struct {
	// UsePhantomQuery skips sending BEGIN to the store. The transaction then
	// exists only as exclusive ownership of the connection.
	UsePhantomQuery bool `koanf:"use_phantom_query" json:"usePhantomQuery"`
}
