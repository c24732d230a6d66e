package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/guard"
	"github.com/leapstack-labs/sqlgate/pkg/result"
)

// Transaction is an explicit transaction on a Connection.
//
// It is created by Connection.StartTransaction while the connection's guard
// is already held, and it owns that guard's token until exactly one of
// Commit or Rollback runs. Statements inside the transaction are serialized
// by a guard of their own.
type Transaction struct {
	*Queryable

	id      string
	options core.TransactionOptions
	parent  *guard.Token
	closed  atomic.Bool
}

// newTransaction builds a transaction that owns parent. Unless the options
// ask for a phantom query, BEGIN is sent to the store first. On any failure
// the caller still owns parent and must release it.
func newTransaction(ctx context.Context, store core.Store, opts core.TransactionOptions, parent *guard.Token, logger *slog.Logger) (result.Result[*Transaction], error) {
	tx := &Transaction{
		id:      uuid.NewString(),
		options: opts,
		parent:  parent,
	}
	tx.Queryable = NewQueryable(store, guard.New(), logger.With(slog.String("tx", tx.id)))
	tx.Queryable.closed = &tx.closed

	if !opts.UsePhantomQuery {
		if err := store.Exec(context.WithoutCancel(ctx), core.DirectiveBegin); err != nil {
			if info, ok := Classify(err); ok {
				return result.Err[*Transaction](info), nil
			}
			return result.Result[*Transaction]{}, fmt.Errorf("failed to begin transaction: %w", err)
		}
	}

	return result.Ok(tx), nil
}

// ID identifies the transaction in diagnostics.
func (tx *Transaction) ID() string {
	return tx.id
}

// Options returns the options the transaction was opened with.
func (tx *Transaction) Options() core.TransactionOptions {
	return tx.options
}

// Closed reports whether Commit or Rollback has been called.
func (tx *Transaction) Closed() bool {
	return tx.closed.Load()
}

// Commit sends COMMIT and then releases the connection, whatever the outcome
// of the directive. A classified directive failure is returned as a failed Result.
func (tx *Transaction) Commit(ctx context.Context) (result.Result[struct{}], error) {
	tx.logger.Debug("commit")

	if !tx.closed.CompareAndSwap(false, true) {
		return result.Err[struct{}](result.TransactionClosed("commit")), nil
	}
	defer tx.releaseParent()

	if err := tx.terminate(ctx, core.DirectiveCommit); err != nil {
		if info, ok := Classify(err); ok {
			return result.Err[struct{}](info), nil
		}
		return result.Result[struct{}]{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result.Ok(struct{}{}), nil
}

// Rollback sends ROLLBACK and then releases the connection. It always
// reports success; a failed directive is only logged.
func (tx *Transaction) Rollback(ctx context.Context) (result.Result[struct{}], error) {
	tx.logger.Debug("rollback")

	if !tx.closed.CompareAndSwap(false, true) {
		return result.Err[struct{}](result.TransactionClosed("rollback")), nil
	}
	defer tx.releaseParent()

	if err := tx.terminate(ctx, core.DirectiveRollback); err != nil {
		tx.logger.Warn("error in rollback", slog.Any("error", err))
	}
	return result.Ok(struct{}{}), nil
}

// terminate runs a terminal directive after any in-flight statement of the
// transaction has finished.
func (tx *Transaction) terminate(ctx context.Context, directive string) error {
	ctx = context.WithoutCancel(ctx)

	token, err := tx.guard.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = token.Release() }()

	return tx.store.Exec(ctx, directive)
}

func (tx *Transaction) releaseParent() {
	if err := tx.parent.Release(); err != nil {
		tx.logger.Error("connection guard released twice", slog.Any("error", err))
	}
}
