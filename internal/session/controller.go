// File: internal/session/controller.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Controller-facing API. Every method only enqueues a message; the
// performance thread applies it on its next cycle boundary or evaluation.

package session

import (
	"context"
	"fmt"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/control"
	"github.com/momentics/hioload-kdebug/internal/concurrency"
)

// AddLineBreakpoint requests a pause at source line after skip ignored hits.
func (s *Session) AddLineBreakpoint(line, skip int) error {
	if line < 0 {
		s.log.Warn("negative line for breakpoint invalid", "line", line)
		return api.NewError(api.ErrCodeInvalidArgument, "negative line for breakpoint").WithContext("line", line)
	}
	if skip < 0 {
		s.log.Warn("negative skip count for breakpoint invalid", "line", line, "skip", skip)
		return api.NewError(api.ErrCodeInvalidArgument, "negative skip count").WithContext("skip", skip)
	}
	return s.submitBreakpoint(api.LineBreakpoint(line, skip))
}

// AddInstrumentBreakpoint requests a pause whenever an instance of instrument
// reaches an evaluation point, after skip ignored hits.
func (s *Session) AddInstrumentBreakpoint(instrument api.InstrumentID, skip int) error {
	if skip < 0 {
		s.log.Warn("negative skip count for breakpoint invalid", "instr", instrument.String(), "skip", skip)
		return api.NewError(api.ErrCodeInvalidArgument, "negative skip count").WithContext("skip", skip)
	}
	return s.submitBreakpoint(api.InstrumentBreakpoint(instrument, skip))
}

// RemoveLineBreakpoint removes the first breakpoint on line, if any.
func (s *Session) RemoveLineBreakpoint(line int) error {
	if line < 0 {
		s.log.Warn("negative line for breakpoint invalid", "line", line)
		return api.NewError(api.ErrCodeInvalidArgument, "negative line for breakpoint").WithContext("line", line)
	}
	return s.submitBreakpoint(api.DeleteLine(line))
}

// RemoveInstrumentBreakpoint removes the first breakpoint on instrument, if any.
func (s *Session) RemoveInstrumentBreakpoint(instrument api.InstrumentID) error {
	return s.submitBreakpoint(api.DeleteInstrument(instrument))
}

// ClearBreakpoints empties the registry.
func (s *Session) ClearBreakpoints() error {
	return s.submitBreakpoint(api.ClearAll())
}

// Start re-arms the session: a running or paused session returns to RUNNING
// without touching breakpoints or queued messages. Like the step commands it
// is only queued here and takes effect when the performance thread reads it.
func (s *Session) Start() error { return s.submitCommand(api.Rearm) }

// StepOver resumes and pauses at the next point of the same instance that is
// not nested deeper than the current one.
func (s *Session) StepOver() error { return s.submitCommand(api.StepOver) }

// StepInto resumes and pauses at the very next evaluation point.
func (s *Session) StepInto() error { return s.submitCommand(api.StepInto) }

// Next resumes and pauses at the next point of the same instance. While
// running it pauses at the next point reached.
func (s *Session) Next() error { return s.submitCommand(api.Next) }

// Continue resumes normal execution.
func (s *Session) Continue() error { return s.submitCommand(api.Continue) }

// Stop ends the session's debugging; the performance loop runs unconditioned
// from then on. Idempotent.
func (s *Session) Stop() error {
	if s.interp.Status() == api.StatusStopped {
		return nil
	}
	return s.submitCommand(api.Stop)
}

func (s *Session) submitBreakpoint(rec api.BreakpointRecord) error {
	if s.closed.Load() {
		return api.ErrSessionClosed
	}

	// The mirror replays edits in channel order, so a full mirror means the
	// performance-side registry will be full when this record arrives.
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()
	adding := rec.Kind == api.KindLine || rec.Kind == api.KindInstrument
	if adding && s.mirror.Len() >= s.mirror.Cap() {
		s.log.Warn("breakpoint registry full", "capacity", s.cfg.RegistryCapacity, "kind", rec.Kind.String())
		return api.NewError(api.ErrCodeRegistryFull, "breakpoint registry full").WithContext("capacity", s.cfg.RegistryCapacity)
	}
	if err := s.bkptOut.submit(rec); err != nil {
		s.metrics.Dropped(control.ChannelBreakpoints)
		s.log.Warn("breakpoint message dropped", "kind", rec.Kind.String(), "line", rec.Line, "err", err)
		return err
	}
	s.metrics.Submitted(control.ChannelBreakpoints)
	s.mirror.Apply(rec)
	s.log.Debug("breakpoint message queued", "kind", rec.Kind.String(), "line", rec.Line, "instr", rec.Instrument.String())
	return nil
}

func (s *Session) submitCommand(cmd api.StepCommand) error {
	if s.closed.Load() {
		return api.ErrSessionClosed
	}
	if cmd != api.Stop && s.interp.Status() == api.StatusStopped {
		return fmt.Errorf("%s: %w", cmd, api.ErrSessionStopped)
	}
	if err := s.cmdOut.submit(cmd); err != nil {
		s.metrics.Dropped(control.ChannelCommands)
		s.log.Warn("step command dropped", "command", cmd.String(), "err", err)
		return err
	}
	s.metrics.Submitted(control.ChannelCommands)
	s.log.Debug("step command queued", "command", cmd.String())
	return nil
}

// Flush moves backlogged messages onto their channels as room allows and
// returns how many are still parked.
func (s *Session) Flush() int {
	return s.bkptOut.flush() + s.cmdOut.flush()
}

// Breakpoints returns the breakpoints the controller has successfully
// submitted, replayed in order. It reflects requests, not what the
// performance thread has applied yet, and carries no hit countdown state.
func (s *Session) Breakpoints() []api.BreakpointRecord {
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()
	return s.mirror.Snapshot(nil)
}

// Events drains pending performance-thread events into dst.
func (s *Session) Events(dst []api.Event) []api.Event {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	for {
		ev, ok := s.events.Read()
		if !ok {
			return dst
		}
		dst = append(dst, ev)
	}
}

// WaitEvent polls for the next event until ctx ends. Backlogged controller
// messages are flushed while waiting.
func (s *Session) WaitEvent(ctx context.Context) (api.Event, error) {
	var b concurrency.Backoff
	for {
		s.eventMu.Lock()
		ev, ok := s.events.Read()
		s.eventMu.Unlock()
		if ok {
			return ev, nil
		}
		if err := ctx.Err(); err != nil {
			return api.Event{}, fmt.Errorf("wait event: %w: %v", api.ErrTimeout, err)
		}
		s.Flush()
		b.Idle()
	}
}

// WaitStatus polls until the session reports want or ctx ends.
func (s *Session) WaitStatus(ctx context.Context, want api.Status) error {
	var b concurrency.Backoff
	for s.interp.Status() != want {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("wait for %s: %w: %v", want, api.ErrTimeout, err)
		}
		s.Flush()
		b.Idle()
	}
	return nil
}
