package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/facade"
	"github.com/momentics/hioload-kdebug/internal/config"
	"github.com/momentics/hioload-kdebug/internal/logx"
	"github.com/momentics/hioload-kdebug/internal/session"
)

const (
	shutdownTimeout = 2 * time.Second
	idlePoll        = 100 * time.Millisecond
)

type runOptions struct {
	cfgPath   string
	lines     []string
	instrs    []string
	instances []string
	cycles    int
	onPause   string
	maxPauses int
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reference engine under the debugger and report every pause",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebugger(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.cfgPath, "config", "c", "", "config file")
	flags.StringArrayVarP(&opts.lines, "line", "l", nil, "line breakpoint as line[:skip]")
	flags.StringArrayVarP(&opts.instrs, "instr", "i", nil, "instrument breakpoint as instrument[:skip]")
	flags.StringArrayVar(&opts.instances, "instance", []string{"1=1,2,3", "2=1,2@1,3"}, "instance to play as instrument=line[@depth],...")
	flags.IntVar(&opts.cycles, "cycles", -1, "k-cycles each instance plays, negative for unbounded")
	flags.StringVar(&opts.onPause, "on-pause", "continue", "command issued at each pause: continue, next, step, over, stop")
	flags.IntVar(&opts.maxPauses, "max-pauses", 10, "stop the session after this many pauses")
	return cmd
}

func runDebugger(ctx context.Context, opts runOptions) error {
	logger := pslog.Ctx(ctx)
	cfg, err := config.Load(opts.cfgPath)
	if err != nil {
		return err
	}
	onPause, err := parseCommand(opts.onPause)
	if err != nil {
		return err
	}

	d, err := facade.New(cfg, facade.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := d.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "err", err)
		}
	}()

	s := d.Session()
	for _, spec := range opts.instances {
		inst, err := parseInstance(spec)
		if err != nil {
			return err
		}
		if _, err := d.Engine().Activate(inst.instr, inst.points, opts.cycles); err != nil {
			return fmt.Errorf("activate %s: %w", spec, err)
		}
	}
	if err := applyBreakpoints(s, opts); err != nil {
		return err
	}

	// the callback runs on the performance thread; it only counts
	var hits atomic.Int64
	s.SetBreakpointCallback(func(api.Instance, api.Hit, any) { hits.Add(1) }, nil)

	if err := d.Start(); err != nil {
		return err
	}

	pauses := 0
	for {
		waitCtx, cancel := context.WithTimeout(ctx, idlePoll)
		ev, err := s.WaitEvent(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("interrupted", "pauses", pauses)
				return nil
			}
			if eng := d.Engine(); eng.Cycles() > 0 && eng.Active() == 0 {
				logger.Info("all instances finished", "pauses", pauses, "cycles", eng.Cycles())
				return nil
			}
			continue
		}
		switch ev.Kind {
		case api.EventPaused:
			pauses++
			logx.WithSession(logger, s.ID()).Info("paused",
				"seq", ev.Seq,
				"cycle", ev.Cycle,
				"instr", ev.Instrument.String(),
				"instance", ev.InstanceID,
				"line", ev.Line,
				"step", stepName(ev.Command))
			cmd := onPause
			if pauses >= opts.maxPauses {
				cmd = api.Stop
			}
			if err := issue(s, cmd); err != nil && !errors.Is(err, api.ErrSessionStopped) {
				return err
			}
		case api.EventResumed:
			logger.Debug("resumed", "seq", ev.Seq, "command", ev.Command.String())
		case api.EventStopped:
			logger.Info("session stopped", "pauses", pauses, "callback_hits", hits.Load(), "cycle", ev.Cycle)
			return nil
		}
	}
}

func applyBreakpoints(s *session.Session, opts runOptions) error {
	for _, spec := range opts.lines {
		line, skip, err := parseLineBreakpoint(spec)
		if err != nil {
			return err
		}
		if err := s.AddLineBreakpoint(line, skip); err != nil {
			return err
		}
	}
	for _, spec := range opts.instrs {
		instr, skip, err := parseInstrBreakpoint(spec)
		if err != nil {
			return err
		}
		if err := s.AddInstrumentBreakpoint(instr, skip); err != nil {
			return err
		}
	}
	return nil
}

func issue(s *session.Session, cmd api.StepCommand) error {
	switch cmd {
	case api.Next:
		return s.Next()
	case api.StepInto:
		return s.StepInto()
	case api.StepOver:
		return s.StepOver()
	case api.Stop:
		return s.Stop()
	default:
		return s.Continue()
	}
}

func stepName(cmd api.StepCommand) string {
	if cmd == 0 {
		return "breakpoint"
	}
	return cmd.String()
}
