// File: internal/session/outbox.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Producer side of a debugger channel. Serializes controller goroutines into
// the single producer the ring requires and applies the overflow policy.

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/internal/concurrency"
)

// OverflowPolicy decides what a controller write does when its channel is full.
type OverflowPolicy int

const (
	// OverflowDrop refuses the newest message and counts it.
	OverflowDrop OverflowPolicy = iota
	// OverflowBacklog parks messages in a bounded controller-side queue that is
	// flushed, in order, as the performance thread frees ring slots.
	OverflowBacklog
	// OverflowWait retries with backoff for at most the configured timeout,
	// then drops.
	OverflowWait
)

// ParseOverflowPolicy maps a config string to an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "drop":
		return OverflowDrop, nil
	case "backlog":
		return OverflowBacklog, nil
	case "wait":
		return OverflowWait, nil
	default:
		return OverflowDrop, api.NewError(api.ErrCodeInvalidArgument, "unknown overflow policy").WithContext("policy", s)
	}
}

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBacklog:
		return "backlog"
	case OverflowWait:
		return "wait"
	default:
		return "drop"
	}
}

type outbox[T any] struct {
	mu      sync.Mutex
	name    string
	ring    *concurrency.Ring[T]
	policy  OverflowPolicy
	backlog *queue.Queue
	limit   int
	wait    time.Duration
	dropped uint64
}

func newOutbox[T any](name string, ring *concurrency.Ring[T], policy OverflowPolicy, limit int, wait time.Duration) *outbox[T] {
	return &outbox[T]{
		name:    name,
		ring:    ring,
		policy:  policy,
		backlog: queue.New(),
		limit:   limit,
		wait:    wait,
	}
}

// submit enqueues item under the overflow policy. A nil error means the item
// is on the ring or parked in the backlog.
func (o *outbox[T]) submit(item T) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushLocked()
	if o.backlog.Length() > 0 {
		// keep ordering behind already parked messages
		return o.parkLocked(item)
	}
	if o.hasRoomLocked() {
		return o.ring.Write(item)
	}

	switch o.policy {
	case OverflowBacklog:
		return o.parkLocked(item)
	case OverflowWait:
		deadline := time.Now().Add(o.wait)
		var b concurrency.Backoff
		for time.Now().Before(deadline) {
			b.Idle()
			if o.hasRoomLocked() {
				return o.ring.Write(item)
			}
		}
	}
	return o.dropLocked()
}

// hasRoomLocked is exact for the single producer: the consumer can only free slots.
func (o *outbox[T]) hasRoomLocked() bool {
	return o.ring.Count() < o.ring.Cap()
}

func (o *outbox[T]) parkLocked(item T) error {
	if o.limit > 0 && o.backlog.Length() >= o.limit {
		return o.dropLocked()
	}
	o.backlog.Add(item)
	return nil
}

func (o *outbox[T]) dropLocked() error {
	o.dropped++
	return fmt.Errorf("%s channel (capacity %d, %d dropped): %w", o.name, o.ring.Cap(), o.dropped, api.ErrChannelOverflow)
}

// flush moves parked messages onto the ring while it has room and returns
// how many are still parked.
func (o *outbox[T]) flush() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushLocked()
	return o.backlog.Length()
}

func (o *outbox[T]) flushLocked() {
	for o.backlog.Length() > 0 && o.hasRoomLocked() {
		item := o.backlog.Remove().(T)
		_ = o.ring.Write(item)
	}
}

// force writes item ahead of the backlog, retrying until it fits or ctx ends.
// Used by teardown so STOP cannot be lost behind parked messages.
func (o *outbox[T]) force(ctx context.Context, item T) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var b concurrency.Backoff
	for {
		if o.hasRoomLocked() {
			return o.ring.Write(item)
		}
		if ctx.Err() != nil {
			o.dropped++
			return fmt.Errorf("%s channel: %w", o.name, api.ErrTimeout)
		}
		b.Idle()
	}
}

func (o *outbox[T]) stats() (pending, parked int, dropped uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ring.Count(), o.backlog.Length(), o.dropped
}
