// File: internal/stepper/interpreter.go
// Package stepper implements the command interpreter and stepping state
// machine that runs on the performance thread.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The interpreter is the debug-instrumented api.Evaluator. It drains the
// breakpoint channel into the registry at each cycle boundary, consumes step
// commands from the command channel and decides for every execution point
// whether the instance proceeds or stays suspended. It never blocks, never
// locks and does not allocate on the per-point path.

package stepper

import (
	"sync/atomic"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/internal/breakpoint"
)

// Listener receives state transitions on the performance thread.
// Implementations must return quickly.
type Listener interface {
	Applied(rec api.BreakpointRecord, res breakpoint.Result)
	Paused(inst api.Instance, hit api.Hit)
	Resumed(inst api.Instance, cmd api.StepCommand)
	Stopped()
}

// Source is the consumer side of a channel.
type Source[T any] interface {
	Read() (T, bool)
	Count() int
}

type stepMode uint8

const (
	stepNone stepMode = iota
	stepInto
	stepOver
	stepNext
)

// Ensure compile-time interface compliance.
var _ api.Evaluator = (*Interpreter)(nil)

// PausedAt is the published location of a pause.
type PausedAt struct {
	Instance api.Instance
	Hit      api.Hit
}

// Interpreter is owned by the performance thread. Only Status, Paused,
// RegistryLen and Cycle may be called from other goroutines.
type Interpreter struct {
	reg      *breakpoint.Registry
	bkpts    Source[api.BreakpointRecord]
	cmds     Source[api.StepCommand]
	scope    api.PauseScope
	listener Listener

	status atomic.Int32
	regLen atomic.Int32
	cycle  atomic.Uint64

	paused   api.Instance
	pausedID uint64
	handle   atomic.Pointer[PausedAt] // stored before status turns PAUSED

	mode      stepMode
	modeCmd   api.StepCommand
	modeInst  uint64
	modeDepth int

	// command taken at an idle cycle boundary, handed to the next Evaluate
	held    api.StepCommand
	hasHeld bool
	evals   int
}

// New builds an interpreter in the RUNNING state.
func New(reg *breakpoint.Registry, bkpts Source[api.BreakpointRecord], cmds Source[api.StepCommand], scope api.PauseScope, l Listener) *Interpreter {
	if l == nil {
		l = nopListener{}
	}
	in := &Interpreter{
		reg:      reg,
		bkpts:    bkpts,
		cmds:     cmds,
		scope:    scope,
		listener: l,
	}
	in.status.Store(int32(api.StatusRunning))
	in.regLen.Store(int32(reg.Len()))
	return in
}

// Status returns the last published state. Safe from any goroutine; the
// value may be stale by the time the caller looks at it.
func (in *Interpreter) Status() api.Status {
	return api.Status(in.status.Load())
}

// Paused returns where the interpreter is suspended. Whenever Status reports
// PAUSED the location is already published.
func (in *Interpreter) Paused() (PausedAt, bool) {
	if in.Status() != api.StatusPaused {
		return PausedAt{}, false
	}
	at := in.handle.Load()
	if at == nil {
		return PausedAt{}, false
	}
	return *at, true
}

// RegistryLen returns the last published number of stored breakpoints.
func (in *Interpreter) RegistryLen() int {
	return int(in.regLen.Load())
}

// Cycle returns the number of cycle boundaries seen.
func (in *Interpreter) Cycle() uint64 {
	return in.cycle.Load()
}

// BeginCycle applies pending breakpoint edits. Work is bounded by the number
// of messages queued when the call starts. After a cycle with no evaluation
// points it also takes one command, so STOP lands on an idle engine.
func (in *Interpreter) BeginCycle() {
	in.cycle.Add(1)
	idle := in.evals == 0
	in.evals = 0
	in.drainBreakpoints()

	switch in.Status() {
	case api.StatusStopped:
		// STOPPED accepts no further commands.
		in.hasHeld = false
		for n := in.cmds.Count(); n > 0; n-- {
			if _, ok := in.cmds.Read(); !ok {
				break
			}
		}
	case api.StatusRunning:
		if !idle || in.hasHeld {
			return
		}
		if cmd, ok := in.cmds.Read(); ok {
			if cmd == api.Stop {
				in.stop()
				return
			}
			in.held, in.hasHeld = cmd, true
		}
	}
}

func (in *Interpreter) nextCommand() (api.StepCommand, bool) {
	if in.hasHeld {
		in.hasHeld = false
		return in.held, true
	}
	return in.cmds.Read()
}

func (in *Interpreter) drainBreakpoints() {
	n := in.bkpts.Count()
	if n == 0 {
		return
	}
	for ; n > 0; n-- {
		rec, ok := in.bkpts.Read()
		if !ok {
			break
		}
		res := in.reg.Apply(rec)
		in.listener.Applied(rec, res)
	}
	in.regLen.Store(int32(in.reg.Len()))
}

// Evaluate decides whether the instance at p may advance.
func (in *Interpreter) Evaluate(p api.ExecutionPoint) api.Decision {
	in.evals++
	switch in.Status() {
	case api.StatusStopped:
		return api.Proceed
	case api.StatusPaused:
		return in.evaluatePaused(p)
	}

	if cmd, ok := in.nextCommand(); ok {
		switch cmd {
		case api.Stop:
			in.stop()
			return api.Proceed
		case api.Next, api.StepInto, api.StepOver:
			in.pause(p, api.Hit{Line: p.Line, Instrument: p.Instance.Instrument(), Step: cmd})
			return api.Pause
		default:
			// CONTINUE and REARM while running only cancel a pending step.
			in.mode = stepNone
		}
	}

	if in.stepDue(p) {
		in.pause(p, api.Hit{Line: p.Line, Instrument: p.Instance.Instrument(), Step: in.modeCmd})
		return api.Pause
	}

	if rec, hit := in.reg.Match(p.Line, p.Instance.Instrument(), p.Entry); hit {
		in.pause(p, api.Hit{Line: p.Line, Instrument: p.Instance.Instrument(), Breakpoint: rec})
		return api.Pause
	}
	return api.Proceed
}

func (in *Interpreter) evaluatePaused(p api.ExecutionPoint) api.Decision {
	if p.Instance.ID() != in.pausedID {
		if in.scope == api.PauseInstance {
			return api.Proceed
		}
		return api.Pause
	}
	cmd, ok := in.nextCommand()
	if !ok {
		return api.Pause
	}

	inst := in.paused
	in.paused = nil
	in.pausedID = 0

	switch cmd {
	case api.Stop:
		in.stop()
		return api.Proceed
	case api.StepInto:
		in.arm(stepInto, cmd, p)
	case api.StepOver:
		in.arm(stepOver, cmd, p)
	case api.Next:
		in.arm(stepNext, cmd, p)
	default:
		in.mode = stepNone
	}
	in.status.Store(int32(api.StatusRunning))
	in.handle.Store(nil)
	in.listener.Resumed(inst, cmd)
	// The resume point itself proceeds without matching, so a breakpoint on
	// this line does not fire again until the instance comes back to it.
	return api.Proceed
}

func (in *Interpreter) arm(mode stepMode, cmd api.StepCommand, p api.ExecutionPoint) {
	in.mode = mode
	in.modeCmd = cmd
	in.modeInst = p.Instance.ID()
	in.modeDepth = p.Depth
}

func (in *Interpreter) stepDue(p api.ExecutionPoint) bool {
	switch in.mode {
	case stepInto:
		return true
	case stepNext:
		return p.Instance.ID() == in.modeInst
	case stepOver:
		return p.Instance.ID() == in.modeInst && p.Depth <= in.modeDepth
	default:
		return false
	}
}

func (in *Interpreter) pause(p api.ExecutionPoint, hit api.Hit) {
	in.mode = stepNone
	in.paused = p.Instance
	in.pausedID = p.Instance.ID()
	in.handle.Store(&PausedAt{Instance: p.Instance, Hit: hit})
	in.status.Store(int32(api.StatusPaused))
	in.listener.Paused(p.Instance, hit)
}

func (in *Interpreter) stop() {
	in.mode = stepNone
	in.hasHeld = false
	in.paused = nil
	in.pausedID = 0
	if in.Status() == api.StatusStopped {
		return
	}
	in.status.Store(int32(api.StatusStopped))
	in.handle.Store(nil)
	in.listener.Stopped()
}

type nopListener struct{}

func (nopListener) Applied(api.BreakpointRecord, breakpoint.Result) {}
func (nopListener) Paused(api.Instance, api.Hit)                    {}
func (nopListener) Resumed(api.Instance, api.StepCommand)           {}
func (nopListener) Stopped()                                        {}
