// Package postgres provides a PostgreSQL store for sqlgate using pgx.
//
// Import this package with a blank identifier to register the store:
//
//	import _ "github.com/leapstack-labs/sqlgate/pkg/stores/postgres"
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/result"
	"github.com/leapstack-labs/sqlgate/pkg/stores/sqlstore"
)

// Provider is the SQL flavor reported by PostgreSQL stores.
const Provider = "postgres"

func init() {
	adapter.Register("postgres", Open)
}

// Open connects to PostgreSQL and pins one session.
func Open(ctx context.Context, cfg core.StoreConfig, logger *slog.Logger) (core.Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	connCfg, err := pgx.ParseConfig(buildPostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	logger.Debug("connecting to postgres", slog.String("host", connCfg.Host), slog.String("database", connCfg.Database))

	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store, err := sqlstore.Open(ctx, db, sqlstore.Options{
		Provider: Provider,
		Classify: classify,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(cfg core.StoreConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnValue(host), port, dsnValue(cfg.Database), dsnValue(sslmode))

	if cfg.User != "" {
		dsn += " user=" + dsnValue(cfg.User)
	}
	if cfg.Password != "" {
		dsn += " password=" + dsnValue(cfg.Password)
	}
	if cfg.Schema != "" {
		dsn += " search_path=" + dsnValue(cfg.Schema)
	}
	return dsn
}

// dsnValue quotes v when it is empty or contains characters that end a
// bare keyword value.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Error is a PostgreSQL server error. It reports a KindPostgres failure
// carrying the alphanumeric SQLSTATE.
type Error struct {
	pg *pgconn.PgError
}

func (e *Error) Error() string {
	return e.pg.Error()
}

func (e *Error) Unwrap() error {
	return e.pg
}

// ErrorInfo implements adapter.InfoError.
func (e *Error) ErrorInfo() result.ErrorInfo {
	return result.ErrorInfo{
		Kind:     result.KindPostgres,
		Message:  e.pg.Message,
		State:    e.pg.Code,
		Severity: e.pg.Severity,
		Detail:   e.pg.Detail,
		Column:   e.pg.ColumnName,
		Hint:     e.pg.Hint,
	}
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{pg: pgErr}
	}
	return err
}

var _ adapter.InfoError = (*Error)(nil)
