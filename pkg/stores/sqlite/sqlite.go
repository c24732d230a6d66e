// Package sqlite provides a SQLite store for sqlgate, backed by the pure-Go
// modernc.org/sqlite driver.
//
// Import this package with a blank identifier to register the store:
//
//	import _ "github.com/leapstack-labs/sqlgate/pkg/stores/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/stores/sqlstore"
	msqlite "modernc.org/sqlite"
)

// Provider is the SQL flavor reported by SQLite stores.
const Provider = "sqlite"

func init() {
	adapter.Register("sqlite", Open)
}

// Params holds SQLite-specific configuration.
// Parsed from core.StoreConfig.Params using mapstructure.
type Params struct {
	// Pragmas applied to the connection (e.g. foreign_keys: "1", journal_mode: "WAL").
	Pragmas map[string]string `mapstructure:"pragmas"`

	// BusyTimeoutMS sets the busy_timeout pragma in milliseconds.
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms"`
}

// ParseParams decodes the store params map.
func ParseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if err := sqlstore.DecodeParams(params, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Open opens a SQLite store. An empty path opens an in-memory database.
func Open(ctx context.Context, cfg core.StoreConfig, logger *slog.Logger) (core.Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	params, err := ParseParams(cfg.Params)
	if err != nil {
		return nil, err
	}

	dsn := buildDSN(cfg.Path, params)
	logger.Debug("opening sqlite", slog.String("path", cfg.Path))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
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

// buildDSN appends pragmas as _pragma query parameters, sorted by name.
func buildDSN(path string, params *Params) string {
	if path == "" {
		path = ":memory:"
	}

	pragmas := make(map[string]string, len(params.Pragmas)+1)
	for k, v := range params.Pragmas {
		pragmas[k] = v
	}
	if params.BusyTimeoutMS > 0 {
		pragmas["busy_timeout"] = strconv.Itoa(params.BusyTimeoutMS)
	}
	if len(pragmas) == 0 {
		return path
	}

	names := make([]string, 0, len(pragmas))
	for name := range pragmas {
		names = append(names, name)
	}
	sort.Strings(names)

	q := url.Values{}
	for _, name := range names {
		q.Add("_pragma", fmt.Sprintf("%s(%s)", name, pragmas[name]))
	}
	return path + "?" + q.Encode()
}

// classify turns driver errors carrying a SQLite result code into store errors.
func classify(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return &core.StoreError{Code: se.Code(), Message: se.Error(), Cause: err}
	}
	return err
}
