// Package breakpoint
// Author: momentics <momentics@gmail.com>
//
// Breakpoint registry owned by the performance thread.
//
// The registry is an ordered, pre-sized container of LINE and INSTRUMENT
// records. It is never touched by the controller directly: every mutation
// arrives as an api.BreakpointRecord drained from the breakpoint channel and
// is applied with Apply, so the performance thread is the only writer.
package breakpoint
