package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/guard"
	"github.com/leapstack-labs/sqlgate/pkg/result"
)

// Connection is the gateway to one store connection. It owns the guard that
// serializes every operation on the store and hands it to transactions.
type Connection struct {
	*Queryable

	txOptions core.TransactionOptions
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransactionOptions sets the options used by StartTransaction.
func WithTransactionOptions(opts core.TransactionOptions) Option {
	return func(c *Connection) {
		c.txOptions = opts
	}
}

// New creates a Connection over store. The connection starts with its own
// guard; no other Connection may share the same store.
func New(store core.Store, opts ...Option) *Connection {
	c := &Connection{
		Queryable: NewQueryable(store, guard.New(), nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("provider", store.Provider()))
	return c
}

// Open creates the store described by cfg through the registry and wraps it
// in a Connection.
func Open(ctx context.Context, cfg core.StoreConfig, logger *slog.Logger, opts ...Option) (*Connection, error) {
	store, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(store, append([]Option{WithLogger(logger)}, opts...)...), nil
}

// TransactionOptions returns the options used by StartTransaction.
func (c *Connection) TransactionOptions() core.TransactionOptions {
	return c.txOptions
}

// StartTransaction acquires the connection's guard and returns a Transaction
// that owns it. If the transaction cannot be built, the guard is released
// here before returning; once it is built, only the transaction releases it.
func (c *Connection) StartTransaction(ctx context.Context) (result.Result[*Transaction], error) {
	opts := c.txOptions
	c.logger.Debug("start_transaction", slog.Bool("use_phantom_query", opts.UsePhantomQuery))

	token, err := c.guard.Acquire(ctx)
	if err != nil {
		return result.Result[*Transaction]{}, err
	}

	// Released on failure or panic. Ownership passes to the transaction only
	// when it is returned successfully.
	handedOff := false
	defer func() {
		if !handedOff {
			_ = token.Release()
		}
	}()

	res, err := newTransaction(ctx, c.store, opts, token, c.logger)
	if err != nil {
		return result.Result[*Transaction]{}, err
	}
	if !res.IsOk() {
		return res, nil
	}

	handedOff = true
	c.logger.Debug("transaction started",
		slog.String("tx", res.Value().ID()),
		slog.Uint64("guard_token", token.ID()))
	return res, nil
}

// Close waits for the connection to become idle and closes the store if it
// holds resources.
func (c *Connection) Close() error {
	token, err := c.guard.Acquire(context.Background())
	if err != nil {
		return err
	}
	defer func() { _ = token.Release() }()

	closer, ok := c.store.(io.Closer)
	if !ok {
		return nil
	}
	c.logger.Debug("closing store")
	if err := closer.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
