package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/guard"
	"github.com/leapstack-labs/sqlgate/pkg/result"
)

// Queryable executes single statements against a store under a guard.
type Queryable struct {
	store  core.Store
	guard  *guard.Guard
	logger *slog.Logger

	// closed is set for queryables owned by a transaction; once it is true
	// no further statement reaches the store.
	closed *atomic.Bool
}

// NewQueryable creates a Queryable that serializes on g.
// If logger is nil, a discard logger is used.
func NewQueryable(store core.Store, g *guard.Guard, logger *slog.Logger) *Queryable {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Queryable{store: store, guard: g, logger: logger}
}

// Provider returns the SQL flavor of the store.
func (q *Queryable) Provider() string {
	return q.store.Provider()
}

// QueryRaw executes a statement and returns its rows.
func (q *Queryable) QueryRaw(ctx context.Context, query core.Query) (result.Result[*core.ResultSet], error) {
	q.logger.Debug("query_raw", slog.String("sql", query.SQL), slog.Any("args", query.Args))

	res, err := q.performIO(ctx, "query_raw", query)
	if err != nil {
		return result.Result[*core.ResultSet]{}, err
	}
	if resp := res.Value(); res.IsOk() {
		if err := checkShape(resp); err != nil {
			return result.Result[*core.ResultSet]{}, err
		}
	}
	return result.Map(res, toResultSet), nil
}

// ExecuteRaw executes a statement and returns the number of affected rows.
// The count is narrowed to 32 bits; larger counts saturate.
func (q *Queryable) ExecuteRaw(ctx context.Context, query core.Query) (result.Result[uint32], error) {
	q.logger.Debug("execute_raw", slog.String("sql", query.SQL), slog.Any("args", query.Args))

	res, err := q.performIO(ctx, "execute_raw", query)
	if err != nil {
		return result.Result[uint32]{}, err
	}
	return result.Map(res, func(resp *core.Response) uint32 {
		return affectedRows(resp.Meta)
	}), nil
}

// performIO runs one statement while holding the guard. The guard is released
// on every exit path, panics included.
func (q *Queryable) performIO(ctx context.Context, op string, query core.Query) (result.Result[*core.Response], error) {
	token, err := q.guard.Acquire(ctx)
	if err != nil {
		return result.Result[*core.Response]{}, err
	}
	defer func() { _ = token.Release() }()

	if q.closed != nil && q.closed.Load() {
		return result.Err[*core.Response](result.TransactionClosed(op)), nil
	}

	// In-flight statements are not cancellable.
	resp, err := q.store.Prepare(query.SQL).Bind(query.Args...).All(context.WithoutCancel(ctx))
	if err != nil {
		q.logger.Debug("error in performIO", slog.String("op", op), slog.Any("error", err))
		if info, ok := Classify(err); ok {
			return result.Err[*core.Response](info), nil
		}
		return result.Result[*core.Response]{}, fmt.Errorf("failed to execute %s: %w", op, err)
	}
	if resp == nil {
		resp = &core.Response{}
	}
	return result.Ok(resp), nil
}

// checkShape verifies every row has one value per reported column.
func checkShape(resp *core.Response) error {
	for i, row := range resp.Rows {
		if len(row) != len(resp.Columns) {
			return fmt.Errorf("%w: row %d has %d values for %d columns", ErrMalformedResponse, i, len(row), len(resp.Columns))
		}
	}
	if resp.ColumnTypes != nil && len(resp.ColumnTypes) != len(resp.Columns) {
		return fmt.Errorf("%w: %d column types for %d columns", ErrMalformedResponse, len(resp.ColumnTypes), len(resp.Columns))
	}
	return nil
}

// toResultSet normalizes a store response. Column names come from the
// store's column metadata, so an empty result keeps its columns.
func toResultSet(resp *core.Response) *core.ResultSet {
	rs := &core.ResultSet{
		ColumnNames: make([]string, len(resp.Columns)),
		ColumnTypes: make([]core.ColumnType, len(resp.Columns)),
		Rows:        make([][]any, 0, len(resp.Rows)),
	}
	copy(rs.ColumnNames, resp.Columns)
	// Types default to Text when the store does not report them.
	copy(rs.ColumnTypes, resp.ColumnTypes)

	for _, row := range resp.Rows {
		values := make([]any, len(row))
		copy(values, row)
		rs.Rows = append(rs.Rows, values)
	}

	if resp.Meta.LastRowID != nil {
		id := strconv.FormatInt(*resp.Meta.LastRowID, 10)
		rs.LastInsertID = &id
	}
	return rs
}

// affectedRows narrows the store's change count to uint32.
// A missing count is zero.
func affectedRows(m core.Meta) uint32 {
	if m.Changes == nil || *m.Changes < 0 {
		return 0
	}
	if *m.Changes > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(*m.Changes)
}
