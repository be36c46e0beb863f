// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the debugger control plane.
// Every child series is resolved at construction so the performance thread
// only touches pre-built counters (atomic adds, no label hashing).

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-kdebug/api"
)

// Channel labels.
const (
	ChannelBreakpoints = "breakpoints"
	ChannelCommands    = "commands"
	ChannelEvents      = "events"
)

// Registry apply outcomes, mirroring breakpoint.Result names.
var applyResults = []string{"added", "removed", "cleared", "not-found", "rejected"}

// Metrics holds the debugger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	submitted map[string]prometheus.Counter
	dropped   map[string]prometheus.Counter
	applied   map[string]prometheus.Counter
	hits      map[api.BreakpointKind]prometheus.Counter
	steps     prometheus.Counter
	resumes   map[api.StepCommand]prometheus.Counter
	stops     prometheus.Counter
	status    prometheus.Gauge
	regSize   prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "kdebug"
	}
	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_messages_total",
		Help:      "Messages accepted onto a debugger channel",
	}, []string{"channel"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_dropped_total",
		Help:      "Messages dropped because a debugger channel was full",
	}, []string{"channel"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breakpoint_edits_total",
		Help:      "Breakpoint messages applied to the registry by outcome",
	}, []string{"result"})
	pauses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pauses_total",
		Help:      "Pauses of the performance loop by cause",
	}, []string{"cause"})
	resumes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resumes_total",
		Help:      "Resumes of the performance loop by command",
	}, []string{"command"})
	stops := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stops_total",
		Help:      "Debug sessions stopped",
	})
	status := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "status",
		Help:      "Debugger status (0 running, 1 paused, 2 stopped)",
	})
	regSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breakpoints",
		Help:      "Breakpoints stored in the registry",
	})
	for _, c := range []prometheus.Collector{submitted, dropped, applied, pauses, resumes, stops, status, regSize} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	m := &Metrics{
		submitted: make(map[string]prometheus.Counter),
		dropped:   make(map[string]prometheus.Counter),
		applied:   make(map[string]prometheus.Counter),
		hits:      make(map[api.BreakpointKind]prometheus.Counter),
		resumes:   make(map[api.StepCommand]prometheus.Counter),
		steps:     pauses.WithLabelValues("step"),
		stops:     stops,
		status:    status,
		regSize:   regSize,
	}
	for _, ch := range []string{ChannelBreakpoints, ChannelCommands, ChannelEvents} {
		m.submitted[ch] = submitted.WithLabelValues(ch)
		m.dropped[ch] = dropped.WithLabelValues(ch)
	}
	for _, res := range applyResults {
		m.applied[res] = applied.WithLabelValues(res)
	}
	for _, kind := range []api.BreakpointKind{api.KindLine, api.KindInstrument} {
		m.hits[kind] = pauses.WithLabelValues(kind.String())
	}
	for _, cmd := range []api.StepCommand{api.StepOver, api.StepInto, api.Next, api.Continue, api.Rearm} {
		m.resumes[cmd] = resumes.WithLabelValues(cmd.String())
	}
	return m, nil
}

// Submitted counts a message accepted onto channel.
func (m *Metrics) Submitted(channel string) {
	if m == nil {
		return
	}
	if c, ok := m.submitted[channel]; ok {
		c.Inc()
	}
}

// Dropped counts a message lost on channel.
func (m *Metrics) Dropped(channel string) {
	if m == nil {
		return
	}
	if c, ok := m.dropped[channel]; ok {
		c.Inc()
	}
}

// Applied counts a registry edit outcome and records the registry size.
func (m *Metrics) Applied(result string, size int) {
	if m == nil {
		return
	}
	if c, ok := m.applied[result]; ok {
		c.Inc()
	}
	m.regSize.Set(float64(size))
}

// Paused counts a pause. Step pauses have hit.Step set.
func (m *Metrics) Paused(hit api.Hit) {
	if m == nil {
		return
	}
	if hit.Step != 0 {
		m.steps.Inc()
	} else if c, ok := m.hits[hit.Breakpoint.Kind]; ok {
		c.Inc()
	}
	m.status.Set(float64(api.StatusPaused))
}

// Resumed counts a resume by command.
func (m *Metrics) Resumed(cmd api.StepCommand) {
	if m == nil {
		return
	}
	if c, ok := m.resumes[cmd]; ok {
		c.Inc()
	}
	m.status.Set(float64(api.StatusRunning))
}

// Stopped counts a stop.
func (m *Metrics) Stopped() {
	if m == nil {
		return
	}
	m.stops.Inc()
	m.status.Set(float64(api.StatusStopped))
}

// Reset publishes a fresh RUNNING session with an empty registry.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.status.Set(float64(api.StatusRunning))
	m.regSize.Set(0)
}
