// Package duckdb provides a DuckDB store for sqlgate.
//
// Import this package with a blank identifier to register the store:
//
//	import _ "github.com/leapstack-labs/sqlgate/pkg/stores/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/stores/sqlstore"
	"github.com/marcboeker/go-duckdb"
)

// Provider is the SQL flavor reported by DuckDB stores.
const Provider = "duckdb"

func init() {
	adapter.Register("duckdb", Open)
}

// Open opens a DuckDB store. Use ":memory:" (or an empty path) for an
// in-memory database. Extensions, secrets and settings from the params are
// applied on the pinned connection before it is handed out.
func Open(ctx context.Context, cfg core.StoreConfig, logger *slog.Logger) (core.Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	params, err := ParseParams(cfg.Params)
	if err != nil {
		return nil, err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	store, err := sqlstore.Open(ctx, db, sqlstore.Options{
		Provider: Provider,
		Classify: classify,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	for _, stmt := range setupStatements(params) {
		logger.Debug("applying duckdb setup", slog.String("sql", redact(stmt)))
		if _, err := store.Prepare(stmt).Bind().All(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to apply duckdb setup %q: %w", redact(stmt), err)
		}
	}

	return store, nil
}

// setupStatements returns the session setup SQL in apply order:
// extensions, then secrets, then settings sorted by name.
func setupStatements(p *Params) []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}
	for _, secret := range p.Secrets {
		stmts = append(stmts, buildCreateSecretSQL(secret))
	}

	names := make([]string, 0, len(p.Settings))
	for name := range p.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", name, quote(p.Settings[name])))
	}
	return stmts
}

// buildCreateSecretSQL renders a CREATE SECRET statement for cfg.
func buildCreateSecretSQL(cfg SecretConfig) string {
	opts := []string{"TYPE " + cfg.Type}
	if cfg.Provider != "" {
		opts = append(opts, "PROVIDER "+cfg.Provider)
	}
	if cfg.Region != "" {
		opts = append(opts, "REGION "+quote(cfg.Region))
	}
	if scope := scopeSQL(cfg.Scope); scope != "" {
		opts = append(opts, "SCOPE "+scope)
	}
	if cfg.KeyID != "" {
		opts = append(opts, "KEY_ID "+quote(cfg.KeyID))
	}
	if cfg.Secret != "" {
		opts = append(opts, "SECRET "+quote(cfg.Secret))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, "ENDPOINT "+quote(cfg.Endpoint))
	}
	if cfg.URLStyle != "" {
		opts = append(opts, "URL_STYLE "+quote(cfg.URLStyle))
	}
	if cfg.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *cfg.UseSSL))
	}
	return "CREATE SECRET (\n    " + strings.Join(opts, ",\n    ") + "\n)"
}

func scopeSQL(scope any) string {
	var items []string
	switch v := scope.(type) {
	case string:
		if v == "" {
			return ""
		}
		return quote(v)
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	default:
		return ""
	}
	if len(items) == 0 {
		return ""
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = quote(item)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// redact hides secret statements from logs and errors.
func redact(stmt string) string {
	if strings.HasPrefix(stmt, "CREATE SECRET") {
		return "CREATE SECRET (...)"
	}
	return stmt
}

// classify maps DuckDB errors to store errors keyed by their error type.
func classify(err error) error {
	var de *duckdb.Error
	if errors.As(err, &de) {
		return &core.StoreError{Code: int(de.Type), Message: de.Msg, Cause: err}
	}
	return err
}
