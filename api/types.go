// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations for the k-rate debugger control plane.

package api

import "strconv"

// InstrumentID identifies an instrument definition. Engines may use fractional
// numbers to tag individual instances (e.g. 1.1, 1.2), so equality is exact.
type InstrumentID float64

// String renders the id without trailing zeros.
func (id InstrumentID) String() string {
	return strconv.FormatFloat(float64(id), 'f', -1, 64)
}

// BreakpointKind tags a BreakpointRecord.
type BreakpointKind uint8

const (
	KindLine BreakpointKind = iota
	KindInstrument
	KindDelete
	KindClearAll
)

func (k BreakpointKind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindInstrument:
		return "instrument"
	case KindDelete:
		return "delete"
	case KindClearAll:
		return "clear-all"
	default:
		return "unknown"
	}
}

// NoLine marks records whose line field is not meaningful.
const NoLine = -1

// BreakpointRecord is the fixed-size message carried by the breakpoint channel.
//
// Exactly one of Line or Instrument is active, selected by Kind. A KindDelete
// record targets a line breakpoint when Line >= 0 and an instrument
// breakpoint when Line == NoLine. KindDelete and KindClearAll are never stored.
type BreakpointRecord struct {
	Kind       BreakpointKind
	Line       int
	Instrument InstrumentID
	Skip       int
	Remaining  int
}

// LineBreakpoint builds an armed LINE record.
func LineBreakpoint(line, skip int) BreakpointRecord {
	return BreakpointRecord{Kind: KindLine, Line: line, Skip: skip, Remaining: skip}
}

// InstrumentBreakpoint builds an armed INSTRUMENT record.
func InstrumentBreakpoint(id InstrumentID, skip int) BreakpointRecord {
	return BreakpointRecord{Kind: KindInstrument, Line: NoLine, Instrument: id, Skip: skip, Remaining: skip}
}

// DeleteLine builds a DELETE record for a line breakpoint.
func DeleteLine(line int) BreakpointRecord {
	return BreakpointRecord{Kind: KindDelete, Line: line}
}

// DeleteInstrument builds a DELETE record for an instrument breakpoint.
func DeleteInstrument(id InstrumentID) BreakpointRecord {
	return BreakpointRecord{Kind: KindDelete, Line: NoLine, Instrument: id}
}

// ClearAll builds a CLEAR_ALL record.
func ClearAll() BreakpointRecord {
	return BreakpointRecord{Kind: KindClearAll, Line: NoLine, Instrument: -1}
}

// Matches reports whether the stored record r is the target of the DELETE record del.
func (r BreakpointRecord) Matches(del BreakpointRecord) bool {
	if del.Line >= 0 {
		return r.Kind == KindLine && r.Line == del.Line
	}
	return r.Kind == KindInstrument && r.Instrument == del.Instrument
}

// StepCommand is the fixed-size message carried by the command channel.
type StepCommand uint8

const (
	StepOver StepCommand = iota + 1
	StepInto
	Next
	Continue
	Stop
	// Rearm resets a running or paused session to RUNNING. Issued by Start.
	Rearm
)

func (c StepCommand) String() string {
	switch c {
	case StepOver:
		return "step-over"
	case StepInto:
		return "step-into"
	case Next:
		return "next"
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case Rearm:
		return "rearm"
	default:
		return "unknown"
	}
}

// Status is the debugger state as seen by the performance thread.
type Status int32

const (
	StatusRunning Status = iota
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PauseScope selects what halts while the session is paused.
type PauseScope int

const (
	// PauseGlobal halts every instrument instance (the whole k-cycle).
	PauseGlobal PauseScope = iota
	// PauseInstance halts only the paused instance; the others keep running
	// with breakpoint matching suppressed.
	PauseInstance
)

// ParsePauseScope maps a config string to a PauseScope.
func ParsePauseScope(s string) (PauseScope, error) {
	switch s {
	case "", "global":
		return PauseGlobal, nil
	case "instance":
		return PauseInstance, nil
	default:
		return PauseGlobal, NewError(ErrCodeInvalidArgument, "unknown pause scope").WithContext("scope", s)
	}
}

func (p PauseScope) String() string {
	if p == PauseInstance {
		return "instance"
	}
	return "global"
}

// Instance is a non-owning handle to a running instrument instance.
// It is only meaningful while the session reports StatusPaused.
type Instance interface {
	// ID is unique per active instance inside the engine.
	ID() uint64
	// Instrument is the instrument definition this instance runs.
	Instrument() InstrumentID
}

// ExecutionPoint is the coordinate the engine reports at each evaluation point.
type ExecutionPoint struct {
	Instance Instance
	Line     int
	// Depth is the call nesting depth inside the instance, 0 at top level.
	Depth int
	// Entry marks the first point of an instance's pass through its k-cycle.
	// Instrument breakpoints are only checked there.
	Entry bool
}

// Hit describes why the performance thread paused.
type Hit struct {
	Line       int
	Instrument InstrumentID
	// Breakpoint is the matching record, zero when the pause came from stepping.
	Breakpoint BreakpointRecord
	// Step is the command that produced the pause, zero on breakpoint hits.
	Step StepCommand
}

// BreakpointCallback runs on the performance thread when a pause begins.
// It must be fast and must not wait on the session it is called from.
type BreakpointCallback func(inst Instance, hit Hit, userData any)
