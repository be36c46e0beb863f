// File: api/evaluator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contract between the debugger and the performance loop.

package api

// Decision is the evaluator's verdict for one execution point.
type Decision uint8

const (
	// Proceed lets the instance advance past the point.
	Proceed Decision = iota
	// Pause holds the instance at the point; the engine re-evaluates it later.
	Pause
)

func (d Decision) String() string {
	if d == Pause {
		return "pause"
	}
	return "proceed"
}

// Evaluator is the per-cycle entry point the performance loop calls.
type Evaluator interface {
	// BeginCycle runs once at each k-cycle boundary, before any instance.
	BeginCycle()
	// Evaluate runs once per evaluation point of each active instance.
	Evaluate(p ExecutionPoint) Decision
}

// Engine is the performance loop as seen by a debug session.
type Engine interface {
	// SetEvaluator swaps the per-cycle evaluation entry point. Engines
	// should apply the swap at a cycle boundary.
	SetEvaluator(ev Evaluator)
	// Running reports whether the performance thread is currently active.
	Running() bool
}

// PlainEvaluator is the non-debug entry point: every point proceeds.
type PlainEvaluator struct{}

// BeginCycle does nothing.
func (PlainEvaluator) BeginCycle() {}

// Evaluate always proceeds.
func (PlainEvaluator) Evaluate(ExecutionPoint) Decision { return Proceed }
