// File: internal/concurrency/backoff.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adaptive idle backoff shared by polling loops: yield while the wait is
// short, sleep once it grows.

package concurrency

import (
	"runtime"
	"time"
)

const (
	minBackoffNs = 1
	maxBackoffNs = 1_000_000
)

// Backoff tracks an exponential idle interval. The zero value is ready to use.
// Not safe for concurrent use; each polling loop owns its own Backoff.
type Backoff struct {
	ns int64
}

// Idle waits for the current interval and doubles it, capped at 1ms.
func (b *Backoff) Idle() {
	if b.ns < minBackoffNs {
		b.ns = minBackoffNs
	}
	if b.ns < 1000 {
		runtime.Gosched()
	} else {
		time.Sleep(time.Duration(b.ns))
	}
	next := b.ns * 2
	if next > maxBackoffNs {
		next = maxBackoffNs
	}
	b.ns = next
}

// Reset returns to the shortest interval after useful work.
func (b *Backoff) Reset() {
	b.ns = minBackoffNs
}

// Interval reports the next interval, for diagnostics.
func (b *Backoff) Interval() time.Duration {
	if b.ns < minBackoffNs {
		return minBackoffNs
	}
	return time.Duration(b.ns)
}
