// File: internal/concurrency/ring.go
// Package concurrency implements lock-free ring buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring is a bounded circular channel with atomic head/tail,
// padded to prevent false sharing.
// Implements api.Ring for cross-package consistency.

package concurrency

import (
	"sync/atomic"

	"github.com/momentics/hioload-kdebug/api"
)

// Ensure compile-time interface compliance.
var _ api.Ring[any] = (*Ring[any])(nil)

// Ring is a lock-free channel for exactly one producer and one consumer.
// All storage is allocated by NewRing; Write and Read never allocate.
type Ring[T any] struct {
	data []T
	size uint64
	head atomic.Uint64
	_    [64]byte // Padding for hot/cold separation
	tail atomic.Uint64
	_    [64]byte // Padding to separate tail from counters
	dropped atomic.Uint64
}

// NewRing allocates a ring holding exactly capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	return &Ring[T]{
		data: make([]T, capacity),
		size: uint64(capacity),
	}
}

// Write adds item; returns api.ErrChannelOverflow if full.
// Previously enqueued items are never touched by a refused write.
func (r *Ring[T]) Write(item T) error {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail-head >= r.size {
		r.dropped.Add(1)
		return api.ErrChannelOverflow
	}
	r.data[tail%r.size] = item
	r.tail.Store(tail + 1)
	return nil
}

// Read removes and returns the oldest item; ok false if empty.
func (r *Ring[T]) Read() (T, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head >= tail {
		var zero T
		return zero, false
	}
	idx := head % r.size
	item := r.data[idx]
	var zero T
	r.data[idx] = zero
	r.head.Store(head + 1)
	return item, true
}

// Count returns number of items currently in the ring.
func (r *Ring[T]) Count() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int(tail - head)
}

// Cap returns fixed ring capacity.
func (r *Ring[T]) Cap() int {
	return int(r.size)
}

// Dropped returns the number of refused writes.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}
