// File: api/events.go
// Package api defines core event types for the debugger.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventKind enumerates performance-thread notifications for the controller.
type EventKind uint8

const (
	EventPaused EventKind = iota + 1
	EventResumed
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is the fixed-size message carried by the reverse (performance to
// controller) channel. Seq increases by one per emitted event, so a gap
// means the controller fell behind and events were dropped.
type Event struct {
	Kind       EventKind
	Seq        uint64
	Cycle      uint64
	Line       int
	Instrument InstrumentID
	InstanceID uint64
	Command    StepCommand
}
