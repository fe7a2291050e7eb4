// Package singleflight suppresses duplicate concurrent calls for the same key
// within one process.
package singleflight

import (
	"context"
	"sync"
)

// Group represents a class of work and forms a namespace in which
// units of work can be executed with duplicate suppression.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

// call is an in-flight call. val and err are written once before done is closed.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error

	// dups is guarded by the Group's mutex
	dups int
}

// Do executes fn for key, making sure only one execution is in flight for
// that key at a time. Duplicate callers wait for the first caller and receive the
// same results. shared reports whether the result was given to more than one caller.
func (g *Group[K, V]) Do(key K, fn func() (V, error)) (v V, err error, shared bool) {
	return g.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but stops waiting when ctx is done.
// The in-flight fn still runs to completion for the other callers.
func (g *Group[K, V]) DoContext(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	if err := ctx.Err(); err != nil {
		return v, err, false
	}

	c, leader := g.join(key)
	if leader {
		go g.run(c, key, fn)
	}

	select {
	case <-ctx.Done():
		return v, ctx.Err(), false
	case <-c.done:
	}

	g.mu.Lock()
	shared = c.dups > 0
	g.mu.Unlock()

	return c.val, c.err, shared
}

// join returns the call for key, creating it when none is in flight
func (g *Group[K, V]) join(key K) (*call[V], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		return c, false
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	return c, true
}

func (g *Group[K, V]) run(c *call[V], key K, fn func() (V, error)) {
	defer func() {
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn()
}

// Forget tells the group to forget about a key. Future calls for this key
// run fn rather than waiting for an earlier call to complete.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// InFlight returns the number of keys currently being processed
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
