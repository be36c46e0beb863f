// Package api
// Author: momentics
//
// Live debug probes for inspecting a running debugger.

package api

// Debug exposes runtime introspection.
type Debug interface {
    // DumpState emits a snapshot of debugger state for diagnostics.
    DumpState() map[string]any

    // RegisterProbe dynamically registers new debug probes.
    RegisterProbe(name string, fn func() any)

    // UnregisterProbe removes a probe; unknown names are ignored.
    UnregisterProbe(name string)
}
