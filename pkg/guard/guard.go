// Package guard provides the exclusive-ownership primitive that serializes
// every operation against a single store connection.
//
// Acquire hands out a Token. The token is the only way to free the guard, and
// it frees it at most once, so ownership can be passed from one holder to
// another (the connection handing the guard to a transaction) without the
// risk of a double release.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrReleased is returned when a token is released a second time.
var ErrReleased = errors.New("guard token already released")

// Guard is a fully exclusive lock. Waiters are admitted in FIFO order.
type Guard struct {
	sem  *semaphore.Weighted
	held atomic.Bool
	seq  atomic.Uint64
}

// New creates an available guard.
func New() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the guard is free and returns the token that releases it.
// ctx only bounds the wait: a caller whose ctx ends before acquisition never
// owns the guard, and once acquired the guard stays held until the token is released.
func (g *Guard) Acquire(ctx context.Context) (*Token, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire guard: %w", err)
	}
	g.held.Store(true)
	return &Token{guard: g, id: g.seq.Add(1)}, nil
}

// Held reports whether some token currently owns the guard.
func (g *Guard) Held() bool {
	return g.held.Load()
}

// Token is a one-shot capability that frees its guard.
type Token struct {
	guard    *Guard
	id       uint64
	released atomic.Bool
}

// ID identifies the acquisition, for diagnostics.
func (t *Token) ID() uint64 {
	return t.id
}

// Release frees the guard. Only the first call has an effect.
func (t *Token) Release() error {
	if !t.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	t.guard.held.Store(false)
	t.guard.sem.Release(1)
	return nil
}

// Released reports whether Release has been called.
func (t *Token) Released() bool {
	return t.released.Load()
}
