// Package memstore provides a scripted in-memory store.
//
// Responses and errors are registered per SQL text. Every call is recorded,
// and calls that overlap in time are counted, which makes the store useful
// for verifying that the gateway serializes access.
package memstore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
)

func init() {
	adapter.Register("memory", func(_ context.Context, _ core.StoreConfig, _ *slog.Logger) (core.Store, error) {
		return New(), nil
	})
}

// Handler answers a statement.
type Handler func(ctx context.Context, args []any) (*core.Response, error)

// DirectiveHandler answers a transaction directive.
type DirectiveHandler func(ctx context.Context) error

// Call is one recorded store invocation.
type Call struct {
	// Directive is set for Exec calls, SQL and Args for statements.
	Directive string
	SQL       string
	Args      []any
}

// Store is a scripted core.Store.
type Store struct {
	provider string

	mu         sync.Mutex
	handlers   map[string]Handler
	directives map[string]DirectiveHandler
	calls      []Call
	closed     bool

	active   atomic.Int32
	overlaps atomic.Int32
}

// New creates an empty store. Unscripted statements return an empty response.
func New() *Store {
	return &Store{
		provider:   "sqlite",
		handlers:   make(map[string]Handler),
		directives: make(map[string]DirectiveHandler),
	}
}

// WithProvider sets the provider name reported by the store.
func (s *Store) WithProvider(provider string) *Store {
	s.provider = provider
	return s
}

// Handle scripts the answer to sql.
func (s *Store) Handle(sql string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[sql] = h
}

// Respond scripts a fixed response to sql.
func (s *Store) Respond(sql string, resp *core.Response) {
	s.Handle(sql, func(context.Context, []any) (*core.Response, error) {
		return resp, nil
	})
}

// Fail scripts an error for sql.
func (s *Store) Fail(sql string, err error) {
	s.Handle(sql, func(context.Context, []any) (*core.Response, error) {
		return nil, err
	})
}

// HandleDirective scripts the answer to a directive such as COMMIT.
func (s *Store) HandleDirective(directive string, h DirectiveHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directives[directive] = h
}

// FailDirective scripts an error for a directive.
func (s *Store) FailDirective(directive string, err error) {
	s.HandleDirective(directive, func(context.Context) error { return err })
}

// Calls returns a copy of every recorded call, in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Directives returns the recorded directives, in order.
func (s *Store) Directives() []string {
	var out []string
	for _, c := range s.Calls() {
		if c.Directive != "" {
			out = append(out, c.Directive)
		}
	}
	return out
}

// Overlaps returns how many calls started while another call was running.
func (s *Store) Overlaps() int {
	return int(s.overlaps.Load())
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Provider implements core.Store.
func (s *Store) Provider() string {
	return s.provider
}

// Prepare implements core.Store.
func (s *Store) Prepare(sql string) core.PreparedStatement {
	return &statement{store: s, sql: sql}
}

// Exec implements core.Store.
func (s *Store) Exec(ctx context.Context, directive string) error {
	defer s.enter()()

	s.mu.Lock()
	s.calls = append(s.calls, Call{Directive: directive})
	h := s.directives[directive]
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	return h(ctx)
}

// Close implements io.Closer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// enter marks a call as running and returns the function that ends it.
func (s *Store) enter() func() {
	if s.active.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	return func() { s.active.Add(-1) }
}

func (s *Store) all(ctx context.Context, sql string, args []any) (*core.Response, error) {
	defer s.enter()()

	s.mu.Lock()
	s.calls = append(s.calls, Call{SQL: sql, Args: args})
	h := s.handlers[sql]
	s.mu.Unlock()

	if h == nil {
		return &core.Response{}, nil
	}
	return h(ctx, args)
}

type statement struct {
	store *Store
	sql   string
	args  []any
}

func (st *statement) Bind(args ...any) core.BoundStatement {
	return &statement{store: st.store, sql: st.sql, args: args}
}

func (st *statement) All(ctx context.Context) (*core.Response, error) {
	return st.store.all(ctx, st.sql, st.args)
}
