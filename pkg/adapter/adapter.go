// Package adapter provides the single-connection query gateway for sqlgate.
//
// A Connection owns one store handle and one guard. Every statement, whether
// issued on the connection or inside a transaction, runs while the guard is
// held, so the store never sees two operations at once. StartTransaction
// acquires the guard and hands its token to the new Transaction, which keeps
// it until Commit or Rollback.
//
// Concrete stores live in pkg/stores subdirectories and register themselves
// with this package in their init functions.
package adapter

import (
	"context"

	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/result"
)

// Querier runs single statements and normalizes their results.
type Querier interface {
	// Provider names the SQL flavor of the underlying store.
	Provider() string

	// QueryRaw executes a statement and returns its rows.
	QueryRaw(ctx context.Context, query core.Query) (result.Result[*core.ResultSet], error)

	// ExecuteRaw executes a statement and returns the number of affected rows.
	ExecuteRaw(ctx context.Context, query core.Query) (result.Result[uint32], error)
}

// DriverAdapter is the top-level gateway contract.
type DriverAdapter interface {
	Querier

	// StartTransaction takes exclusive ownership of the connection and
	// returns a transaction holding it.
	StartTransaction(ctx context.Context) (result.Result[*Transaction], error)

	// Close releases the underlying store.
	Close() error
}

// Ensure the gateway types implement their contracts.
var (
	_ DriverAdapter = (*Connection)(nil)
	_ Querier       = (*Transaction)(nil)
	_ Querier       = (*Queryable)(nil)
)
