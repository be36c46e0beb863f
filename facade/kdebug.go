// File: facade/kdebug.go
// Unified facade layer for the kdebug control plane.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Debugger aggregates the components of a debugging setup behind a single
// facade: logger, prometheus registry and metrics, debug probes, the control
// adapter, the reference engine and the debug session attached to it. All of
// them are built from one immutable config.Config.

package facade

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"pkt.systems/pslog"

	"github.com/momentics/hioload-kdebug/adapters"
	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/control"
	"github.com/momentics/hioload-kdebug/internal/config"
	"github.com/momentics/hioload-kdebug/internal/engine"
	"github.com/momentics/hioload-kdebug/internal/logx"
	"github.com/momentics/hioload-kdebug/internal/session"
)

// Option customises a Debugger.
type Option func(*Debugger)

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(log pslog.Logger) Option {
	return func(d *Debugger) {
		if log != nil {
			d.log = log
		}
	}
}

// WithEngine attaches the session to eng instead of a reference engine. The
// caller then drives eng; Start and Stop become no-ops for it.
func WithEngine(eng api.Engine) Option {
	return func(d *Debugger) { d.external = eng }
}

// Debugger is the main facade type.
type Debugger struct {
	cfg      config.Config
	log      pslog.Logger
	registry *prometheus.Registry
	metrics  *control.Metrics
	probes   *control.DebugProbes
	control  *adapters.ControlAdapter
	engine   *engine.Engine // nil when an external engine is attached
	external api.Engine
	session  *session.Session

	mu      sync.Mutex // protects the run state below
	cancel  context.CancelFunc
	done    chan error
	started bool
}

// Ensure compliance with api.GracefulShutdown.
var _ api.GracefulShutdown = (*Debugger)(nil)

// New validates cfg and builds every component. The session is attached and
// its debug evaluator installed, but the reference engine does not run until
// Start.
func New(cfg config.Config, opts ...Option) (*Debugger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Debugger{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		probes:   control.NewDebugProbes(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logx.New(os.Stderr, cfg.Log.Level, cfg.Log.Mode)
	}

	m, err := control.NewMetrics(d.registry, cfg.Metrics.Namespace)
	if err != nil {
		return nil, fmt.Errorf("metrics init failure: %w", err)
	}
	d.metrics = m

	target := d.external
	if target == nil {
		d.engine = engine.New(cfg.EngineConfig(), d.log.With("component", "engine"))
		target = d.engine
	}

	sc, err := cfg.SessionConfig()
	if err != nil {
		return nil, err
	}
	d.session, err = session.New(target, sc, session.WithLogger(d.log), session.WithMetrics(d.metrics))
	if err != nil {
		return nil, fmt.Errorf("session init failure: %w", err)
	}
	d.session.RegisterProbes(d.probes)

	sources := []adapters.StatsSource{d.session}
	if d.engine != nil {
		sources = append(sources, engineStats{d.engine})
	}
	d.control = adapters.NewControlAdapter(cfg.Snapshot(), d.registry, d.probes, sources...)
	d.control.OnReload(func(changed []string) {
		d.log.Info("configuration updated", "keys", changed)
	})
	return d, nil
}

// Start runs the reference engine on its own pinned goroutine. Subsequent
// calls have no effect.
func (d *Debugger) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.engine == nil {
		return nil
	}
	if d.session.Closed() {
		return api.ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan error, 1)
	go func() { d.done <- d.engine.Run(ctx) }()
	d.started = true
	return nil
}

// Stop halts the reference engine and waits for its loop to return. The
// session stays attached.
func (d *Debugger) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	d.cancel()
	err := <-d.done
	d.started = false
	return err
}

// Shutdown closes the session while the engine still runs, so STOP is
// acknowledged, then stops the engine.
func (d *Debugger) Shutdown(ctx context.Context) error {
	closeErr := d.session.Close(ctx)
	d.session.UnregisterProbes(d.probes)
	stopErr := d.Stop()
	if closeErr != nil {
		return closeErr
	}
	return stopErr
}

// Session returns the debug session controller API.
func (d *Debugger) Session() *session.Session {
	return d.session
}

// Engine returns the reference engine, nil when an external one was attached.
func (d *Debugger) Engine() *engine.Engine {
	return d.engine
}

// Control returns the config, stats and probe interface.
func (d *Debugger) Control() api.Control {
	return d.control
}

// Reconfigure publishes changed settings to Control listeners. Session and
// engine parameters are immutable; the change is informational only.
func (d *Debugger) Reconfigure(values map[string]any) {
	d.control.SetConfig(values)
}

// Gatherer exposes the private metrics registry.
func (d *Debugger) Gatherer() prometheus.Gatherer {
	return d.registry
}

// Logger returns the facade logger.
func (d *Debugger) Logger() pslog.Logger {
	return d.log
}

type engineStats struct {
	e *engine.Engine
}

func (s engineStats) Stats() map[string]any {
	return map[string]any{
		"engine.cycles":  s.e.Cycles(),
		"engine.active":  s.e.Active(),
		"engine.refused": s.e.Refused(),
		"engine.running": s.e.Running(),
	}
}
