// File: internal/session/probes.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"github.com/momentics/hioload-kdebug/control"
)

// Stats returns a display snapshot of the session. Values are read without
// stopping the performance thread and may be mutually inconsistent.
func (s *Session) Stats() map[string]any {
	bPending, bParked, bDropped := s.bkptOut.stats()
	cPending, cParked, cDropped := s.cmdOut.stats()
	stats := map[string]any{
		"session.id":                  s.id,
		"session.status":              s.interp.Status().String(),
		"session.cycle":               s.interp.Cycle(),
		"session.pause_scope":         s.cfg.PauseScope.String(),
		"registry.size":               s.interp.RegistryLen(),
		"registry.capacity":           s.cfg.RegistryCapacity,
		"channel.breakpoints.pending": bPending,
		"channel.breakpoints.parked":  bParked,
		"channel.breakpoints.dropped": bDropped,
		"channel.commands.pending":    cPending,
		"channel.commands.parked":     cParked,
		"channel.commands.dropped":    cDropped,
		"channel.events.pending":      s.events.Count(),
		"channel.events.dropped":      s.events.Dropped(),
	}
	if inst, ok := s.PausedInstance(); ok {
		stats["session.paused_instance"] = inst.ID()
		stats["session.paused_instr"] = inst.Instrument().String()
	}
	return stats
}

// RegisterProbes exposes the session through dp under the "debugger." prefix.
func (s *Session) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("debugger.session", func() any { return s.id })
	dp.RegisterProbe("debugger.status", func() any { return s.interp.Status().String() })
	dp.RegisterProbe("debugger.breakpoints", func() any { return s.interp.RegistryLen() })
	dp.RegisterProbe("debugger.cycle", func() any { return s.interp.Cycle() })
	dp.RegisterProbe("debugger.paused_instance", func() any {
		if inst, ok := s.PausedInstance(); ok {
			return inst.ID()
		}
		return nil
	})
}

// UnregisterProbes removes the probes added by RegisterProbes.
func (s *Session) UnregisterProbes(dp *control.DebugProbes) {
	for _, name := range []string{
		"debugger.session",
		"debugger.status",
		"debugger.breakpoints",
		"debugger.cycle",
		"debugger.paused_instance",
	} {
		dp.UnregisterProbe(name)
	}
}
