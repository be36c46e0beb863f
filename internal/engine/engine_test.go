package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-kdebug/api"
)

// holdLine pauses every instance that reaches line.
type holdLine struct {
	line   int
	cycles int
	seen   []api.ExecutionPoint
}

func (h *holdLine) BeginCycle() { h.cycles++ }
func (h *holdLine) Evaluate(p api.ExecutionPoint) api.Decision {
	h.seen = append(h.seen, p)
	if p.Line == h.line {
		return api.Pause
	}
	return api.Proceed
}

func newTestEngine() *Engine {
	cfg := DefaultConfig()
	cfg.Period = 0
	return New(cfg, nil)
}

func TestInstancesRunTheirDuration(t *testing.T) {
	e := newTestEngine()
	a, err := e.Activate(1, []Point{{Line: 1}, {Line: 2}}, 3)
	require.NoError(t, err)
	b, err := e.Activate(2, []Point{{Line: 5}}, -1)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	e.RunCycles(5)
	assert.Equal(t, uint64(3), a.Passes())
	assert.Equal(t, uint64(5), b.Passes())
	assert.Equal(t, 1, e.Active())
	assert.Equal(t, uint64(5), e.Cycles())
	assert.False(t, e.Running())
}

func TestActivateValidates(t *testing.T) {
	e := newTestEngine()
	_, err := e.Activate(1, nil, 1)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = e.Activate(1, []Point{{Line: 1}}, 0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestConcurrentActivateKeepsEveryInstance(t *testing.T) {
	const producers, each = 4, 8
	for round := 0; round < 200; round++ {
		e := newTestEngine()
		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < each; i++ {
					_, err := e.Activate(1, []Point{{Line: 1}}, -1)
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()
		e.RunCycles(1)

		require.Equal(t, producers*each, e.Active(), "round %d", round)
		ids := make(map[uint64]struct{}, producers*each)
		for _, inst := range e.instances {
			ids[inst.ID()] = struct{}{}
		}
		require.Len(t, ids, producers*each, "round %d", round)
	}
}

func TestEntryMarksFirstPointOfPass(t *testing.T) {
	e := newTestEngine()
	h := &holdLine{line: 3}
	e.SetEvaluator(h)
	_, err := e.Activate(1, []Point{{Line: 1}, {Line: 2}, {Line: 3}}, -1)
	require.NoError(t, err)

	e.RunCycles(2)
	var entries []bool
	for _, p := range h.seen {
		entries = append(entries, p.Entry)
	}
	// the instance is held at line 3, so the second cycle re-evaluates it mid-pass
	assert.Equal(t, []bool{true, false, false, false}, entries)
}

func TestActivationQueueOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 1
	e := New(cfg, nil)
	_, err := e.Activate(1, []Point{{Line: 1}}, 1)
	require.NoError(t, err)
	_, err = e.Activate(1, []Point{{Line: 1}}, 1)
	assert.ErrorIs(t, err, api.ErrChannelOverflow)
}

func TestMaxInstancesRefusesExtra(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInstances = 1
	e := New(cfg, nil)
	_, err := e.Activate(1, []Point{{Line: 1}}, -1)
	require.NoError(t, err)
	_, err = e.Activate(2, []Point{{Line: 1}}, -1)
	require.NoError(t, err)
	e.RunCycles(1)
	assert.Equal(t, 1, e.Active())
	assert.Equal(t, uint64(1), e.Refused())
}

func TestEvaluatorSwapAtCycleBoundary(t *testing.T) {
	e := newTestEngine()
	inst, err := e.Activate(3, []Point{{Line: 1, Depth: 0}, {Line: 2, Depth: 1}, {Line: 3}}, -1)
	require.NoError(t, err)

	h := &holdLine{line: 2}
	e.SetEvaluator(h)
	e.RunCycles(1)
	assert.Equal(t, 1, h.cycles)
	require.Len(t, h.seen, 2)
	assert.Equal(t, 2, h.seen[1].Line)
	assert.Equal(t, 1, h.seen[1].Depth)
	assert.Same(t, inst, h.seen[1].Instance)

	// a paused instance resumes from the point it was held at
	e.RunCycles(2)
	assert.Equal(t, uint64(0), inst.Passes())
	assert.Equal(t, uint64(3), inst.Held())
	for _, p := range h.seen[2:] {
		assert.Equal(t, 2, p.Line)
	}

	e.SetEvaluator(nil)
	e.RunCycles(1)
	assert.Equal(t, uint64(1), inst.Passes(), "nil installs the plain evaluator")
}

func TestRunPacesAndStops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Period = time.Millisecond
	e := New(cfg, nil)
	_, err := e.Activate(1, []Point{{Line: 1}}, -1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, e.Running, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return e.Cycles() >= 5 }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, e.Run(context.Background()), api.ErrPrecondition)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, e.Running())
}

func TestCycleDoesNotAllocate(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 4; i++ {
		_, err := e.Activate(api.InstrumentID(i), []Point{{Line: 1}, {Line: 2}}, -1)
		require.NoError(t, err)
	}
	e.RunCycles(1)
	allocs := testing.AllocsPerRun(100, func() { e.RunCycles(1) })
	assert.Zero(t, allocs)
}
