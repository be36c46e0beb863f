// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control on top of the control package
// primitives and a prometheus gatherer.

package adapters

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/control"
)

// StatsSource contributes keys to Stats.
type StatsSource interface {
	Stats() map[string]any
}

// Ensure compile-time interface compliance.
var _ api.Control = (*ControlAdapter)(nil)

type ControlAdapter struct {
	config   *control.ConfigStore
	debug    *control.DebugProbes
	gatherer prometheus.Gatherer
	sources  []StatsSource
}

// NewControlAdapter publishes cfg and merges the given sources, probes and
// gathered metrics into Stats. gatherer and debug may be nil.
func NewControlAdapter(cfg map[string]any, gatherer prometheus.Gatherer, debug *control.DebugProbes, sources ...StatsSource) *ControlAdapter {
	if debug == nil {
		debug = control.NewDebugProbes()
	}
	adapter := &ControlAdapter{
		config:   control.NewConfigStore(cfg),
		debug:    debug,
		gatherer: gatherer,
		sources:  sources,
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *ControlAdapter) SetConfig(cfg map[string]any) {
	c.config.SetConfig(cfg)
}

func (c *ControlAdapter) OnReload(fn func(changed []string)) {
	c.config.OnReload(fn)
}

// Stats merges source stats, "debug."-prefixed probe output and
// "metrics."-prefixed counter and gauge values.
func (c *ControlAdapter) Stats() map[string]any {
	combined := make(map[string]any)
	for _, src := range c.sources {
		for k, v := range src.Stats() {
			combined[k] = v
		}
	}
	for k, v := range c.debug.DumpState() {
		combined["debug."+k] = v
	}
	if c.gatherer == nil {
		return combined
	}
	families, err := c.gatherer.Gather()
	if err != nil {
		combined["metrics.error"] = err.Error()
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := "metrics." + mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, lp := range labels {
					pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
				}
				sort.Strings(pairs)
				key += "{" + strings.Join(pairs, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				combined[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				combined[key] = m.GetGauge().GetValue()
			}
		}
	}
	return combined
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
