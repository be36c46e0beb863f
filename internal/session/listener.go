// File: internal/session/listener.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Performance-thread side of the session: publishes snapshots, emits events
// and runs the hit callback when the interpreter changes state.

package session

import (
	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/control"
	"github.com/momentics/hioload-kdebug/internal/breakpoint"
)

// perfListener runs on the performance thread only.
type perfListener struct {
	s *Session
}

func (l perfListener) Applied(_ api.BreakpointRecord, res breakpoint.Result) {
	l.s.metrics.Applied(res.String(), l.s.reg.Len())
}

func (l perfListener) Paused(inst api.Instance, hit api.Hit) {
	s := l.s
	s.metrics.Paused(hit)
	s.emit(api.Event{
		Kind:       api.EventPaused,
		Line:       hit.Line,
		Instrument: hit.Instrument,
		InstanceID: inst.ID(),
		Command:    hit.Step,
	})
	if cb := s.callback.Load(); cb != nil {
		cb.fn(inst, hit, cb.data)
	}
}

func (l perfListener) Resumed(inst api.Instance, cmd api.StepCommand) {
	s := l.s
	s.metrics.Resumed(cmd)
	ev := api.Event{Kind: api.EventResumed, Command: cmd, Line: api.NoLine}
	if inst != nil {
		ev.InstanceID = inst.ID()
		ev.Instrument = inst.Instrument()
	}
	s.emit(ev)
}

func (l perfListener) Stopped() {
	s := l.s
	s.metrics.Stopped()
	s.emit(api.Event{Kind: api.EventStopped, Command: api.Stop, Line: api.NoLine})
}

// emit never blocks; a full event channel drops the event and the sequence
// gap tells the controller.
func (s *Session) emit(ev api.Event) {
	s.eventSeq++
	ev.Seq = s.eventSeq
	ev.Cycle = s.interp.Cycle()
	if err := s.events.Write(ev); err != nil {
		s.metrics.Dropped(control.ChannelEvents)
		return
	}
	s.metrics.Submitted(control.ChannelEvents)
}
