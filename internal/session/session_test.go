package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/control"
	"github.com/momentics/hioload-kdebug/internal/engine"
	"github.com/momentics/hioload-kdebug/internal/session"
)

func newEngine() *engine.Engine {
	cfg := engine.DefaultConfig()
	cfg.Period = 0
	return engine.New(cfg, nil)
}

func newSession(t *testing.T, eng api.Engine, mutate func(*session.Config), opts ...session.Option) *session.Session {
	t.Helper()
	cfg := session.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := session.New(eng, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func activate(t *testing.T, eng *engine.Engine, instr api.InstrumentID, lines ...int) *engine.Instance {
	t.Helper()
	points := make([]engine.Point, 0, len(lines))
	for _, l := range lines {
		points = append(points, engine.Point{Line: l})
	}
	inst, err := eng.Activate(instr, points, -1)
	require.NoError(t, err)
	return inst
}

func TestLineBreakpointPausesAndContinues(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	inst := activate(t, eng, 1, 9, 10, 11)

	var calls int
	var gotData any
	var gotHit api.Hit
	s.SetBreakpointCallback(func(i api.Instance, hit api.Hit, data any) {
		calls++
		gotData = data
		gotHit = hit
	}, "user-data")

	require.NoError(t, s.AddLineBreakpoint(10, 0))
	eng.RunCycles(1)

	require.Equal(t, api.StatusPaused, s.Status())
	paused, ok := s.PausedInstance()
	require.True(t, ok)
	assert.Equal(t, api.InstrumentID(1), paused.Instrument())
	assert.Equal(t, inst.ID(), paused.ID())
	assert.Equal(t, 1, calls)
	assert.Equal(t, "user-data", gotData)
	assert.Equal(t, 10, gotHit.Line)
	assert.Equal(t, api.KindLine, gotHit.Breakpoint.Kind)
	assert.Equal(t, uint64(0), inst.Passes())

	eng.RunCycles(3)
	assert.Equal(t, 1, calls, "held instance does not re-fire")
	assert.Equal(t, uint64(0), inst.Passes())

	require.NoError(t, s.Continue())
	eng.RunCycles(1)
	assert.Equal(t, api.StatusRunning, s.Status())
	assert.Equal(t, uint64(1), inst.Passes())
	_, ok = s.PausedInstance()
	assert.False(t, ok)

	eng.RunCycles(1)
	assert.Equal(t, api.StatusPaused, s.Status(), "line reached again on the next pass")
	assert.Equal(t, 2, calls)
}

func TestInstrumentBreakpointHonoursSkip(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	require.NoError(t, s.AddInstrumentBreakpoint(5, 2))

	first := activate(t, eng, 5, 1)
	second := activate(t, eng, 5, 1)
	third := activate(t, eng, 5, 1)
	eng.RunCycles(1)

	require.Equal(t, api.StatusPaused, s.Status())
	paused, ok := s.PausedInstance()
	require.True(t, ok)
	assert.Equal(t, third.ID(), paused.ID())
	assert.Equal(t, uint64(1), first.Passes())
	assert.Equal(t, uint64(1), second.Passes())
	assert.Equal(t, uint64(0), third.Passes())
}

func TestInstrumentBreakpointCountsActivationsNotLines(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	require.NoError(t, s.AddInstrumentBreakpoint(5, 2))
	inst := activate(t, eng, 5, 1, 2, 3)

	eng.RunCycles(2)
	require.Equal(t, api.StatusRunning, s.Status(), "two passes are skipped")
	assert.Equal(t, uint64(2), inst.Passes())

	eng.RunCycles(1)
	require.Equal(t, api.StatusPaused, s.Status())
	hit, ok := s.LastHit()
	require.True(t, ok)
	assert.Equal(t, 1, hit.Line, "pauses at the first point of the pass")
	assert.Equal(t, uint64(2), inst.Passes())
}

func TestContinueAfterInstrumentHitFinishesPass(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	require.NoError(t, s.AddInstrumentBreakpoint(7, 0))
	inst := activate(t, eng, 7, 1, 2, 3)

	var pauses int
	s.SetBreakpointCallback(func(api.Instance, api.Hit, any) { pauses++ }, nil)
	for i := 0; i < 6; i++ {
		eng.RunCycles(1)
		if s.Status() == api.StatusPaused {
			require.NoError(t, s.Continue())
		}
	}
	assert.Equal(t, 3, pauses)
	assert.Equal(t, uint64(3), inst.Passes())
}

func TestFractionalInstrumentIDs(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	require.NoError(t, s.AddInstrumentBreakpoint(1.5, 0))
	activate(t, eng, 1, 1)
	target := activate(t, eng, 1.5, 1)
	eng.RunCycles(1)

	paused, ok := s.PausedInstance()
	require.True(t, ok)
	assert.Equal(t, target.ID(), paused.ID())
}

func TestInvalidArguments(t *testing.T) {
	s := newSession(t, newEngine(), nil)
	err := s.AddLineBreakpoint(-1, 0)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
	assert.ErrorIs(t, s.AddLineBreakpoint(4, -2), api.ErrInvalidArgument)
	assert.ErrorIs(t, s.AddInstrumentBreakpoint(2, -1), api.ErrInvalidArgument)
	assert.ErrorIs(t, s.RemoveLineBreakpoint(-3), api.ErrInvalidArgument)
	assert.Empty(t, s.Breakpoints())
}

func TestFullRegistryRejectsAdd(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, func(c *session.Config) { c.RegistryCapacity = 1 })
	require.NoError(t, s.AddLineBreakpoint(1, 0))

	err := s.AddLineBreakpoint(2, 0)
	require.ErrorIs(t, err, api.ErrRegistryFull)
	assert.Equal(t, api.ErrCodeRegistryFull, api.CodeOf(err))
	assert.ErrorIs(t, s.AddInstrumentBreakpoint(3, 0), api.ErrRegistryFull)
	assert.Equal(t, []api.BreakpointRecord{api.LineBreakpoint(1, 0)}, s.Breakpoints())

	eng.RunCycles(1)
	stats := s.Stats()
	assert.Equal(t, 1, stats["registry.size"])
	assert.Equal(t, 0, stats["channel.breakpoints.pending"])

	// removing frees the slot again
	require.NoError(t, s.RemoveLineBreakpoint(1))
	require.NoError(t, s.AddLineBreakpoint(2, 0))
	inst := activate(t, eng, 1, 2)
	eng.RunCycles(1)
	assert.Equal(t, api.StatusPaused, s.Status())
	assert.Equal(t, uint64(0), inst.Passes())
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := session.New(nil, session.DefaultConfig())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	cfg := session.DefaultConfig()
	cfg.ChannelCapacity = 0
	_, err = session.New(newEngine(), cfg)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	cfg = session.DefaultConfig()
	cfg.Overflow = session.OverflowWait
	cfg.WaitTimeout = 0
	_, err = session.New(newEngine(), cfg)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestRemoveAndClearBreakpoints(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	require.NoError(t, s.AddLineBreakpoint(3, 0))
	require.NoError(t, s.AddLineBreakpoint(4, 1))
	require.NoError(t, s.AddInstrumentBreakpoint(2, 0))
	require.NoError(t, s.RemoveLineBreakpoint(3))
	assert.Equal(t, []api.BreakpointRecord{api.LineBreakpoint(4, 1), api.InstrumentBreakpoint(2, 0)}, s.Breakpoints())

	require.NoError(t, s.ClearBreakpoints())
	assert.Empty(t, s.Breakpoints())

	inst := activate(t, eng, 2, 3, 4)
	eng.RunCycles(2)
	assert.Equal(t, api.StatusRunning, s.Status())
	assert.Equal(t, uint64(2), inst.Passes())
}

func TestStepNextWalksInstance(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	inst := activate(t, eng, 1, 1, 2, 3)
	require.NoError(t, s.AddLineBreakpoint(1, 0))
	eng.RunCycles(1)
	require.Equal(t, api.StatusPaused, s.Status())

	require.NoError(t, s.Next())
	eng.RunCycles(1)
	hit, ok := s.LastHit()
	require.True(t, ok)
	assert.Equal(t, 2, hit.Line)
	assert.Equal(t, api.Next, hit.Step)

	require.NoError(t, s.Next())
	eng.RunCycles(1)
	hit, _ = s.LastHit()
	assert.Equal(t, 3, hit.Line)
	assert.Equal(t, uint64(0), inst.Passes())
}

func TestStopIsTerminal(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	inst := activate(t, eng, 1, 7)
	require.NoError(t, s.AddLineBreakpoint(7, 0))
	eng.RunCycles(1)
	require.Equal(t, api.StatusPaused, s.Status())

	require.NoError(t, s.Stop())
	eng.RunCycles(1)
	assert.Equal(t, api.StatusStopped, s.Status())

	assert.ErrorIs(t, s.Continue(), api.ErrSessionStopped)
	assert.ErrorIs(t, s.Start(), api.ErrSessionStopped)
	assert.NoError(t, s.Stop(), "stop is idempotent")

	eng.RunCycles(5)
	assert.Equal(t, api.StatusStopped, s.Status())
	assert.Equal(t, uint64(6), inst.Passes())
}

func TestStopOnIdleEngine(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	require.NoError(t, s.Stop())
	eng.RunCycles(1)
	assert.Equal(t, api.StatusStopped, s.Status())
}

func TestEventsCarrySequence(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	activate(t, eng, 3, 2)
	require.NoError(t, s.AddLineBreakpoint(2, 0))
	eng.RunCycles(1)
	require.NoError(t, s.Continue())
	// resume completes the pass, the next pass pauses again
	eng.RunCycles(2)
	require.NoError(t, s.Stop())
	eng.RunCycles(1)

	events := s.Events(nil)
	require.Len(t, events, 4)
	kinds := []api.EventKind{api.EventPaused, api.EventResumed, api.EventPaused, api.EventStopped}
	for i, ev := range events {
		assert.Equal(t, kinds[i], ev.Kind, "event %d", i)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Equal(t, 2, events[0].Line)
	assert.Equal(t, api.InstrumentID(3), events[0].Instrument)
	assert.Equal(t, api.Continue, events[1].Command)
	assert.Empty(t, s.Events(nil))
}

func TestEventOverflowLeavesSequenceGap(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, func(c *session.Config) { c.EventCapacity = 1 })
	activate(t, eng, 1, 1)
	require.NoError(t, s.AddLineBreakpoint(1, 0))
	eng.RunCycles(1)
	require.NoError(t, s.Continue())
	eng.RunCycles(1)

	first := s.Events(nil)
	require.Len(t, first, 1)
	assert.Equal(t, uint64(1), first[0].Seq)

	require.NoError(t, s.Continue())
	eng.RunCycles(1)
	next, err := s.WaitEvent(context.Background())
	require.NoError(t, err)
	assert.Greater(t, next.Seq, first[0].Seq+1, "dropped events show as a gap")
}

func TestWaitEventTimesOut(t *testing.T) {
	s := newSession(t, newEngine(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := s.WaitEvent(ctx)
	assert.ErrorIs(t, err, api.ErrTimeout)
}

func TestDropPolicyReportsOverflow(t *testing.T) {
	s := newSession(t, newEngine(), func(c *session.Config) { c.ChannelCapacity = 2 })
	require.NoError(t, s.AddLineBreakpoint(1, 0))
	require.NoError(t, s.AddLineBreakpoint(2, 0))
	err := s.AddLineBreakpoint(3, 0)
	require.ErrorIs(t, err, api.ErrChannelOverflow)
	assert.Len(t, s.Breakpoints(), 2, "dropped edit is not mirrored")
	assert.Equal(t, uint64(1), s.Stats()["channel.breakpoints.dropped"])
}

func TestBacklogPolicyPreservesOrder(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, func(c *session.Config) {
		c.ChannelCapacity = 1
		c.Overflow = session.OverflowBacklog
		c.BacklogLimit = 2
	})
	require.NoError(t, s.AddLineBreakpoint(1, 0))
	require.NoError(t, s.AddLineBreakpoint(2, 0))
	require.NoError(t, s.RemoveLineBreakpoint(1))
	assert.ErrorIs(t, s.AddLineBreakpoint(4, 0), api.ErrChannelOverflow, "backlog limit reached")
	assert.Equal(t, 2, s.Stats()["channel.breakpoints.parked"])

	for i := 0; i < 3; i++ {
		eng.RunCycles(1)
		s.Flush()
	}
	assert.Zero(t, s.Flush())
	assert.Equal(t, 1, s.Stats()["registry.size"])

	inst := activate(t, eng, 1, 1, 2)
	eng.RunCycles(1)
	hit, ok := s.LastHit()
	require.True(t, ok)
	assert.Equal(t, 2, hit.Line, "delete of line 1 was applied after its add")
	assert.Equal(t, uint64(0), inst.Passes())
}

func TestWaitPolicyGivesUp(t *testing.T) {
	s := newSession(t, newEngine(), func(c *session.Config) {
		c.ChannelCapacity = 1
		c.Overflow = session.OverflowWait
		c.WaitTimeout = time.Millisecond
	})
	require.NoError(t, s.Next())
	start := time.Now()
	err := s.Continue()
	assert.ErrorIs(t, err, api.ErrChannelOverflow)
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}

func TestWaitPolicySucceedsWhenConsumerDrains(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, func(c *session.Config) {
		c.ChannelCapacity = 1
		c.Overflow = session.OverflowWait
		c.WaitTimeout = 2 * time.Second
	})
	require.NoError(t, s.AddLineBreakpoint(1, 0))

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(5 * time.Millisecond)
		eng.RunCycles(1)
	}()
	require.NoError(t, s.AddLineBreakpoint(2, 0))
	<-done
	eng.RunCycles(1)
	assert.Equal(t, 2, s.Stats()["registry.size"])
}

func TestCloseRestoresPlainEvaluator(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	inst := activate(t, eng, 1, 1)
	require.NoError(t, s.AddLineBreakpoint(1, 0))
	eng.RunCycles(1)
	require.Equal(t, api.StatusPaused, s.Status())

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Continue(), api.ErrSessionClosed)
	assert.ErrorIs(t, s.AddLineBreakpoint(2, 0), api.ErrSessionClosed)
	assert.NoError(t, s.Close(context.Background()), "close is idempotent")

	eng.RunCycles(2)
	assert.Equal(t, uint64(2), inst.Passes(), "plain evaluator never holds")
}

func TestCloseWaitsForRunningEngine(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	inst := activate(t, eng, 1, 1, 2)
	require.NoError(t, s.AddLineBreakpoint(2, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, s.WaitStatus(waitCtx, api.StatusPaused))
	paused, ok := s.PausedInstance()
	require.True(t, ok, "handle resolves as soon as the status reads paused")
	assert.Equal(t, inst.ID(), paused.ID())

	require.NoError(t, s.Close(waitCtx))
	assert.Equal(t, api.StatusStopped, s.Status())

	before := inst.Passes()
	require.Eventually(t, func() bool { return inst.Passes() > before+2 }, 2*time.Second, time.Millisecond)
}

func TestCloseTimesOutWithoutConsumer(t *testing.T) {
	eng := &stalledEngine{}
	s, err := session.New(eng, session.DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err = s.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrTimeout))
	assert.IsType(t, api.PlainEvaluator{}, eng.ev, "plain evaluator restored regardless")
}

// stalledEngine claims to run but never evaluates anything.
type stalledEngine struct {
	ev api.Evaluator
}

func (e *stalledEngine) SetEvaluator(ev api.Evaluator) { e.ev = ev }
func (e *stalledEngine) Running() bool                 { return true }

func TestCallbackReplacedAndRemoved(t *testing.T) {
	eng := newEngine()
	s := newSession(t, eng, nil)
	activate(t, eng, 1, 1)
	require.NoError(t, s.AddLineBreakpoint(1, 0))

	var first, second int
	s.SetBreakpointCallback(func(api.Instance, api.Hit, any) { first++ }, nil)
	s.SetBreakpointCallback(func(api.Instance, api.Hit, any) { second++ }, nil)
	eng.RunCycles(1)
	assert.Zero(t, first)
	assert.Equal(t, 1, second)

	s.SetBreakpointCallback(nil, nil)
	require.NoError(t, s.Continue())
	eng.RunCycles(2)
	assert.Equal(t, api.StatusPaused, s.Status())
	assert.Equal(t, 1, second)
}

func TestStatsProbesAndMetrics(t *testing.T) {
	eng := newEngine()
	reg := prometheus.NewRegistry()
	m, err := control.NewMetrics(reg, "sess")
	require.NoError(t, err)
	s := newSession(t, eng, nil, session.WithMetrics(m))
	inst := activate(t, eng, 4, 8)
	require.NoError(t, s.AddLineBreakpoint(8, 0))
	eng.RunCycles(1)

	stats := s.Stats()
	assert.Equal(t, s.ID(), stats["session.id"])
	assert.Equal(t, "paused", stats["session.status"])
	assert.Equal(t, inst.ID(), stats["session.paused_instance"])
	assert.Equal(t, 1, stats["registry.size"])

	dp := control.NewDebugProbes()
	s.RegisterProbes(dp)
	state := dp.DumpState()
	assert.Equal(t, "paused", state["debugger.status"])
	assert.Equal(t, inst.ID(), state["debugger.paused_instance"])
	s.UnregisterProbes(dp)
	assert.Empty(t, dp.Names())

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
