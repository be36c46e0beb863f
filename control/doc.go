// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for the debugger control plane.
//
// Provides concurrent-safe observation primitives including:
//   - Prometheus collectors for channel traffic, pauses and registry edits
//   - Named debug probes returning point-in-time snapshots
//   - Platform probes (CPU count, affinity)
//
// Nothing here is read or written by the performance thread except the
// pre-resolved counters in Metrics.
package control
