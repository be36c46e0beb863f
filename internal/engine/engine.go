// File: internal/engine/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/internal/concurrency"
	"github.com/momentics/hioload-kdebug/internal/logx"
)

// Config holds parameters immutable per engine.
type Config struct {
	Period       time.Duration // wall time of one k-cycle in Run; 0 runs flat out
	PinCPU       int           // core for the performance thread, -1 leaves it unpinned
	MaxInstances int           // active instances before activations are refused
	QueueSize    int           // pending activations
}

// DefaultConfig returns a 64-sample block at 44.1kHz.
func DefaultConfig() Config {
	return Config{
		Period:       64 * time.Second / 44100,
		PinCPU:       -1,
		MaxInstances: 256,
		QueueSize:    64,
	}
}

type evalBox struct {
	ev api.Evaluator
}

// Ensure compile-time interface compliance.
var _ api.Engine = (*Engine)(nil)

// Engine is the reference performance loop. One goroutine at a time may
// drive it through Run or RunCycles; Activate and SetEvaluator may be called
// from any goroutine.
type Engine struct {
	cfg Config
	log pslog.Logger

	evaluator api.Evaluator // performance thread only
	pending   atomic.Pointer[evalBox]

	actMu       sync.Mutex // serializes Activate callers into the ring's single producer
	activations *concurrency.Ring[*Instance]
	instances   []*Instance // performance thread only
	active      atomic.Int32

	nextID  atomic.Uint64
	cycles  atomic.Uint64
	running atomic.Bool
	refused atomic.Uint64
}

// New creates an idle engine running the plain evaluator.
func New(cfg Config, log pslog.Logger) *Engine {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = DefaultConfig().MaxInstances
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if log == nil {
		log = logx.Discard()
	}
	return &Engine{
		cfg:         cfg,
		log:         log,
		evaluator:   api.PlainEvaluator{},
		activations: concurrency.NewRing[*Instance](cfg.QueueSize),
		instances:   make([]*Instance, 0, cfg.MaxInstances),
	}
}

// SetEvaluator swaps the evaluation entry point at the next cycle boundary.
func (e *Engine) SetEvaluator(ev api.Evaluator) {
	if ev == nil {
		ev = api.PlainEvaluator{}
	}
	e.pending.Store(&evalBox{ev: ev})
}

// Running reports whether a goroutine is inside Run or RunCycles.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Activate schedules a new instance of instr walking points each k-cycle for
// cycles k-cycles (negative for unbounded). The instance joins at the next
// cycle boundary. Safe for concurrent callers.
func (e *Engine) Activate(instr api.InstrumentID, points []Point, cycles int) (*Instance, error) {
	if len(points) == 0 || cycles == 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "instance needs points and a duration").WithContext("instr", instr.String())
	}
	inst := &Instance{
		id:        e.nextID.Add(1),
		instr:     instr,
		points:    append([]Point(nil), points...),
		remaining: cycles,
	}
	e.actMu.Lock()
	err := e.activations.Write(inst)
	e.actMu.Unlock()
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Cycles returns the number of completed k-cycles.
func (e *Engine) Cycles() uint64 {
	return e.cycles.Load()
}

// Active returns the number of active instances after the last cycle.
func (e *Engine) Active() int {
	return int(e.active.Load())
}

// Refused returns activations dropped because MaxInstances was reached.
func (e *Engine) Refused() uint64 {
	return e.refused.Load()
}

// RunCycles runs n k-cycles on the calling goroutine without pacing.
func (e *Engine) RunCycles(n int) {
	e.running.Store(true)
	defer e.running.Store(false)
	for i := 0; i < n; i++ {
		e.cycle()
	}
}

// Run drives k-cycles every Period until ctx ends. The calling goroutine
// becomes the performance thread and is pinned when PinCPU >= 0.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodePrecondition, "engine already running")
	}
	defer e.running.Store(false)

	if err := concurrency.PinCurrentThread(e.cfg.PinCPU); err != nil {
		e.log.Warn("performance thread not pinned", "cpu", e.cfg.PinCPU, "err", err)
	}
	defer concurrency.UnpinCurrentThread()
	e.log.Info("performance loop started", "period", e.cfg.Period.String(), "cpu", e.cfg.PinCPU)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	next := time.Now()
	for {
		if ctx.Err() != nil {
			e.log.Info("performance loop stopped", "cycles", e.cycles.Load())
			return nil
		}
		e.cycle()
		if e.cfg.Period <= 0 {
			continue
		}
		next = next.Add(e.cfg.Period)
		wait := time.Until(next)
		if wait <= 0 {
			// overran the period: drop the debt instead of bursting
			next = time.Now()
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

func (e *Engine) cycle() {
	if box := e.pending.Swap(nil); box != nil {
		e.evaluator = box.ev
	}
	for n := e.activations.Count(); n > 0; n-- {
		inst, ok := e.activations.Read()
		if !ok {
			break
		}
		if len(e.instances) == cap(e.instances) {
			e.refused.Add(1)
			continue
		}
		e.instances = append(e.instances, inst)
	}

	ev := e.evaluator
	ev.BeginCycle()
	kept := e.instances[:0]
	for _, inst := range e.instances {
		if inst.advance(ev) {
			kept = append(kept, inst)
		}
	}
	clear(e.instances[len(kept):])
	e.instances = kept
	e.active.Store(int32(len(kept)))
	e.cycles.Add(1)
}
