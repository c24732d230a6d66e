// Package sqlstore implements core.Store on top of database/sql.
//
// A Store pins exactly one physical connection from its *sql.DB, so
// transaction directives sent through Exec apply to the same session as the
// statements that follow them. Driver packages (sqlite, duckdb, postgres)
// open the *sql.DB and supply a Classifier that turns driver errors into
// coded store errors.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

// Classifier converts a driver error into a classified error (typically a
// *core.StoreError) or returns it unchanged when it carries no code.
type Classifier func(err error) error

// Options configures a Store.
type Options struct {
	// Provider names the SQL flavor reported by the store.
	Provider string

	// Classify maps driver errors. Nil leaves errors untouched.
	Classify Classifier

	// Logger receives diagnostics. Nil uses a discard logger.
	Logger *slog.Logger
}

// Store is a core.Store over a single *sql.Conn.
type Store struct {
	db       *sql.DB
	conn     *sql.Conn
	provider string
	classify Classifier
	logger   *slog.Logger
}

// Open pins one connection of db and returns a Store using it.
// The Store takes ownership of db and closes it on Close.
func Open(ctx context.Context, db *sql.DB, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Classify == nil {
		opts.Classify = func(err error) error { return err }
	}

	// One physical connection per gateway.
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	opts.Logger.Debug("pinned store connection", slog.String("provider", opts.Provider))

	return &Store{
		db:       db,
		conn:     conn,
		provider: opts.Provider,
		classify: opts.Classify,
		logger:   opts.Logger,
	}, nil
}

// Provider implements core.Store.
func (s *Store) Provider() string {
	return s.provider
}

// Prepare implements core.Store.
func (s *Store) Prepare(sqlStr string) core.PreparedStatement {
	return &statement{store: s, sql: sqlStr}
}

// Exec runs a transaction directive on the pinned connection.
func (s *Store) Exec(ctx context.Context, directive string) error {
	if _, err := s.conn.ExecContext(ctx, directive); err != nil {
		return s.classify(err)
	}
	return nil
}

// Close releases the pinned connection and closes the database.
func (s *Store) Close() error {
	s.logger.Debug("closing store connection", slog.String("provider", s.provider))
	connErr := s.conn.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	if connErr != nil && connErr != sql.ErrConnDone {
		return fmt.Errorf("failed to close connection: %w", connErr)
	}
	return nil
}

// query runs a statement that returns rows. For a write with RETURNING,
// each returned row is one changed row, so the row count is the change count.
func (s *Store) query(ctx context.Context, sqlStr string, args []any, writes bool) (*core.Response, error) {
	//nolint:rowserrcheck // rows.Err() is checked after iteration below
	rows, err := s.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, s.classify(err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	resp := &core.Response{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		resp.Rows = append(resp.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(err)
	}
	if writes {
		n := int64(len(resp.Rows))
		resp.Meta.Changes = &n
	}
	return resp, nil
}

func (s *Store) exec(ctx context.Context, sqlStr string, args []any) (*core.Response, error) {
	res, err := s.conn.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, s.classify(err)
	}

	resp := &core.Response{}
	// Drivers that cannot report these return an error; the field stays nil.
	if n, err := res.RowsAffected(); err == nil {
		resp.Meta.Changes = &n
	}
	if id, err := res.LastInsertId(); err == nil {
		resp.Meta.LastRowID = &id
	}
	return resp, nil
}

type statement struct {
	store *Store
	sql   string
	args  []any
}

func (st *statement) Bind(args ...any) core.BoundStatement {
	return &statement{store: st.store, sql: st.sql, args: args}
}

// All runs the statement as a query when it returns rows and as an exec
// otherwise, so both row data and change counts are available.
func (st *statement) All(ctx context.Context) (*core.Response, error) {
	if shape := Analyze(st.sql); shape.ReturnsRows {
		return st.store.query(ctx, st.sql, st.args, shape.Writes)
	}
	return st.store.exec(ctx, st.sql, st.args)
}

// DecodeParams decodes store-specific params (from StoreConfig.Params) into out.
// Values from environment variables arrive as strings, so input is weakly typed.
func DecodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid store params: %w", err)
	}
	return nil
}

// Ensure Store implements core.Store.
var _ core.Store = (*Store)(nil)
