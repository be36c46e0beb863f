// Package session
// Author: momentics <momentics@gmail.com>
//
// Debug session: the process-scoped object tying together the breakpoint
// registry, the breakpoint and command channels, the stepping interpreter and
// the reverse event channel.
//
// Controller-facing methods (breakpoint edits, step commands, Start, Close)
// only enqueue messages and return. The performance thread owns the registry
// and the interpreter; controller code sees their state only through
// atomically published snapshots, which may be stale.
package session
