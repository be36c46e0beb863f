// File: internal/engine/instance.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"sync/atomic"

	"github.com/momentics/hioload-kdebug/api"
)

// Point is one scripted evaluation point of an instrument.
type Point struct {
	Line  int `mapstructure:"line" yaml:"line"`
	Depth int `mapstructure:"depth" yaml:"depth"`
}

// Ensure compile-time interface compliance.
var _ api.Instance = (*Instance)(nil)

// Instance is an active instrument instance. Position fields belong to the
// performance thread; counters are atomic for observers.
type Instance struct {
	id     uint64
	instr  api.InstrumentID
	points []Point
	pc     int
	// k-cycles left, negative for unbounded
	remaining int

	passes atomic.Uint64
	held   atomic.Uint64
}

// ID returns the engine-unique instance id.
func (i *Instance) ID() uint64 { return i.id }

// Instrument returns the instrument this instance plays.
func (i *Instance) Instrument() api.InstrumentID { return i.instr }

// Passes returns how many complete k-cycle passes the instance has made.
func (i *Instance) Passes() uint64 { return i.passes.Load() }

// Held returns how many evaluations returned Pause for this instance.
func (i *Instance) Held() uint64 { return i.held.Load() }

// advance runs the instance for one k-cycle. It returns false once the
// instance has used up its duration.
func (i *Instance) advance(ev api.Evaluator) bool {
	for i.pc < len(i.points) {
		p := i.points[i.pc]
		if ev.Evaluate(api.ExecutionPoint{Instance: i, Line: p.Line, Depth: p.Depth, Entry: i.pc == 0}) == api.Pause {
			i.held.Add(1)
			return true
		}
		i.pc++
	}
	i.pc = 0
	i.passes.Add(1)
	if i.remaining > 0 {
		i.remaining--
	}
	return i.remaining != 0
}
