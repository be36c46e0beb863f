// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session lifecycle: init installs the debug evaluator on the engine, Close
// requests STOP, waits for the performance thread and restores the plain one.

package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/control"
	"github.com/momentics/hioload-kdebug/internal/breakpoint"
	"github.com/momentics/hioload-kdebug/internal/concurrency"
	"github.com/momentics/hioload-kdebug/internal/logx"
	"github.com/momentics/hioload-kdebug/internal/stepper"
)

// Config holds the sizing and policy of one session. Immutable after New.
type Config struct {
	ChannelCapacity  int            // slots in each controller channel
	EventCapacity    int            // slots in the reverse event channel
	RegistryCapacity int            // stored breakpoints before adds are rejected
	PauseScope       api.PauseScope // what halts while paused
	Overflow         OverflowPolicy // full-channel behaviour for controller writes
	BacklogLimit     int            // parked messages per channel, 0 unbounded
	WaitTimeout      time.Duration  // bound for OverflowWait
}

// DefaultConfig returns the stock sizing: 64-slot channels and registry.
func DefaultConfig() Config {
	return Config{
		ChannelCapacity:  64,
		EventCapacity:    64,
		RegistryCapacity: breakpoint.DefaultCapacity,
		PauseScope:       api.PauseGlobal,
		Overflow:         OverflowDrop,
		BacklogLimit:     1024,
		WaitTimeout:      5 * time.Millisecond,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.ChannelCapacity <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "channel capacity must be positive").WithContext("channel_capacity", c.ChannelCapacity)
	case c.EventCapacity <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "event capacity must be positive").WithContext("event_capacity", c.EventCapacity)
	case c.RegistryCapacity <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "registry capacity must be positive").WithContext("registry_capacity", c.RegistryCapacity)
	case c.BacklogLimit < 0:
		return api.NewError(api.ErrCodeInvalidArgument, "backlog limit must not be negative").WithContext("backlog_limit", c.BacklogLimit)
	case c.Overflow == OverflowWait && c.WaitTimeout <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "wait policy needs a positive timeout").WithContext("wait_timeout", c.WaitTimeout)
	}
	return nil
}

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the controller-side logger.
func WithLogger(log pslog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records channel traffic and transitions into m.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

type callbackEntry struct {
	fn   api.BreakpointCallback
	data any
}

// Session is one debugger attached to one engine.
type Session struct {
	id      string
	cfg     Config
	engine  api.Engine
	log     pslog.Logger
	metrics *control.Metrics

	bkpts  *concurrency.Ring[api.BreakpointRecord]
	cmds   *concurrency.Ring[api.StepCommand]
	events *concurrency.Ring[api.Event]
	reg    *breakpoint.Registry
	interp *stepper.Interpreter

	bkptOut *outbox[api.BreakpointRecord]
	cmdOut  *outbox[api.StepCommand]

	// controller-side replay of accepted edits, for display
	mirrorMu sync.Mutex
	mirror   *breakpoint.Registry

	eventMu sync.Mutex // single consumer of events

	callback atomic.Pointer[callbackEntry]
	eventSeq uint64 // performance thread only

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// New initialises a session and installs its debug evaluator on engine.
// The registry starts empty and the status is RUNNING.
func New(engine api.Engine, cfg Config, opts ...Option) (*Session, error) {
	if engine == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		engine: engine,
		log:    logx.Discard(),
		bkpts:  concurrency.NewRing[api.BreakpointRecord](cfg.ChannelCapacity),
		cmds:   concurrency.NewRing[api.StepCommand](cfg.ChannelCapacity),
		events: concurrency.NewRing[api.Event](cfg.EventCapacity),
		reg:    breakpoint.NewRegistry(cfg.RegistryCapacity),
		mirror: breakpoint.NewRegistry(cfg.RegistryCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logx.WithSession(s.log, s.id)
	s.bkptOut = newOutbox(control.ChannelBreakpoints, s.bkpts, cfg.Overflow, cfg.BacklogLimit, cfg.WaitTimeout)
	s.cmdOut = newOutbox(control.ChannelCommands, s.cmds, cfg.Overflow, cfg.BacklogLimit, cfg.WaitTimeout)
	s.interp = stepper.New(s.reg, s.bkpts, s.cmds, cfg.PauseScope, perfListener{s})

	s.metrics.Reset()
	engine.SetEvaluator(s.interp)
	s.log.Info("debug session initialised",
		"channel_capacity", cfg.ChannelCapacity,
		"registry_capacity", cfg.RegistryCapacity,
		"pause_scope", cfg.PauseScope.String(),
		"overflow", cfg.Overflow.String())
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Evaluator returns the debug-instrumented evaluator installed on the engine.
func (s *Session) Evaluator() api.Evaluator {
	return s.interp
}

// Status returns a snapshot of the debugger state.
func (s *Session) Status() api.Status {
	return s.interp.Status()
}

// PausedInstance returns the instance suspended at a breakpoint. The handle
// is only valid while the status stays PAUSED; query again after resuming.
func (s *Session) PausedInstance() (api.Instance, bool) {
	if s.closed.Load() {
		return nil, false
	}
	at, ok := s.interp.Paused()
	return at.Instance, ok
}

// LastHit returns why the session is paused.
func (s *Session) LastHit() (api.Hit, bool) {
	if s.closed.Load() {
		return api.Hit{}, false
	}
	at, ok := s.interp.Paused()
	return at.Hit, ok
}

// SetBreakpointCallback installs the hit callback, replacing any previous one.
// A nil fn removes it.
func (s *Session) SetBreakpointCallback(fn api.BreakpointCallback, userData any) {
	if fn == nil {
		s.callback.Store(nil)
		return
	}
	s.callback.Store(&callbackEntry{fn: fn, data: userData})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close tears the session down. While the engine is running it first
// requests STOP and waits, bounded by ctx, for the performance thread to
// acknowledge; then it restores the plain evaluator. Calling Close again
// returns the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.stopAndWait(ctx)
		s.engine.SetEvaluator(api.PlainEvaluator{})
		s.callback.Store(nil)
		if s.closeErr != nil {
			s.log.Warn("debug session closed without stop acknowledgement", "err", s.closeErr)
			return
		}
		s.log.Info("debug session closed")
	})
	return s.closeErr
}

func (s *Session) stopAndWait(ctx context.Context) error {
	if !s.engine.Running() || s.interp.Status() == api.StatusStopped {
		return nil
	}
	if err := s.cmdOut.force(ctx, api.Stop); err != nil {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	var b concurrency.Backoff
	for s.interp.Status() != api.StatusStopped {
		if !s.engine.Running() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("close session %s: %w: %v", s.id, api.ErrTimeout, err)
		}
		b.Idle()
	}
	return nil
}
