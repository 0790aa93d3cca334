package cqp

import "sync"

// The pool, its node and the connection manager have no single owner: the
// registry (or the embedding session) holds Strong handles, while every
// background goroutine holds only Weak ones. When the owner releases its
// Strong handle, Weak.Get starts failing and each goroutine treats that as a
// normal exit condition on its next wake. This is the only lifetime-management
// mechanism in the package - there are no cancellation channels.

type refCell[T any] struct {
	mu    sync.RWMutex
	value T
	alive bool
}

// Strong is the owning handle to a shared value.
type Strong[T any] struct {
	cell *refCell[T]
}

// NewStrong creates the owning handle for value.
func NewStrong[T any](value T) Strong[T] {
	return Strong[T]{cell: &refCell[T]{value: value, alive: true}}
}

// Get returns the held value. Valid until Release is called; the zero Strong
// holds nothing.
func (s Strong[T]) Get() T {
	var zero T
	if s.cell == nil {
		return zero
	}

	s.cell.mu.RLock()
	defer s.cell.mu.RUnlock()
	return s.cell.value
}

// Downgrade returns a weak view that stops resolving once Release is called.
func (s Strong[T]) Downgrade() Weak[T] {
	return Weak[T]{cell: s.cell}
}

// Release invalidates every weak view. Safe to call more than once.
func (s Strong[T]) Release() {
	if s.cell == nil {
		return
	}

	s.cell.mu.Lock()
	defer s.cell.mu.Unlock()
	var zero T
	s.cell.value = zero
	s.cell.alive = false
}

// Weak is a non-owning view of a value held by a Strong handle.
// The zero Weak never resolves.
type Weak[T any] struct {
	cell *refCell[T]
}

// Get returns the value and true while the owner's Strong handle is alive.
func (w Weak[T]) Get() (T, bool) {
	if w.cell == nil {
		var zero T
		return zero, false
	}

	w.cell.mu.RLock()
	defer w.cell.mu.RUnlock()
	return w.cell.value, w.cell.alive
}
