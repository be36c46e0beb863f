// Package api
// Author: momentics@gmail.com
//
// Lock-free ring buffer for cross-thread producer/consumer.

package api

// Ring is a bounded single-producer/single-consumer channel contract.
type Ring[T any] interface {
    // Write enqueues item, returning ErrChannelOverflow if full. Never blocks.
    Write(item T) error
    // Read removes the oldest item, returns false if empty. Never blocks.
    Read() (T, bool)
    // Count returns current number of items.
    Count() int
    // Cap returns the fixed capacity.
    Cap() int
    // Dropped returns how many writes were refused because the ring was full.
    Dropped() uint64
}
