// File: internal/breakpoint/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package breakpoint

import (
	"github.com/momentics/hioload-kdebug/api"
)

// DefaultCapacity is the number of stored breakpoints a registry holds
// without growing.
const DefaultCapacity = 64

// Result reports what Apply did with a record.
type Result uint8

const (
	Added Result = iota
	Removed
	Cleared
	// NotFound: a DELETE matched nothing. Not an error.
	NotFound
	// Rejected: the record was invalid or the registry was full.
	Rejected
)

func (r Result) String() string {
	switch r {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Cleared:
		return "cleared"
	case NotFound:
		return "not-found"
	default:
		return "rejected"
	}
}

// Registry holds armed breakpoints in insertion order.
// Not safe for concurrent use.
type Registry struct {
	records []api.BreakpointRecord
}

// NewRegistry allocates a registry with room for capacity breakpoints.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{records: make([]api.BreakpointRecord, 0, capacity)}
}

// Apply mutates the registry according to rec.
//
// LINE and INSTRUMENT records are appended; a full registry rejects them
// instead of reallocating. DELETE removes the first matching record.
// CLEAR_ALL empties the registry.
func (r *Registry) Apply(rec api.BreakpointRecord) Result {
	switch rec.Kind {
	case api.KindLine:
		if rec.Line < 0 || rec.Skip < 0 {
			return Rejected
		}
		return r.add(rec)
	case api.KindInstrument:
		if rec.Skip < 0 {
			return Rejected
		}
		rec.Line = api.NoLine
		return r.add(rec)
	case api.KindDelete:
		for i := range r.records {
			if r.records[i].Matches(rec) {
				r.removeAt(i)
				return Removed
			}
		}
		return NotFound
	case api.KindClearAll:
		r.Clear()
		return Cleared
	default:
		return Rejected
	}
}

func (r *Registry) add(rec api.BreakpointRecord) Result {
	if len(r.records) == cap(r.records) {
		return Rejected
	}
	rec.Remaining = rec.Skip
	r.records = append(r.records, rec)
	return Added
}

// removeAt shifts the tail left, keeping order and capacity.
func (r *Registry) removeAt(i int) {
	copy(r.records[i:], r.records[i+1:])
	r.records[len(r.records)-1] = api.BreakpointRecord{}
	r.records = r.records[:len(r.records)-1]
}

// Clear drops every record, keeping the backing storage.
func (r *Registry) Clear() {
	clear(r.records)
	r.records = r.records[:0]
}

// Match scans for records matching the execution coordinates. Each matching
// record with skips left is counted down; the first one with none left
// triggers: its countdown is re-armed to Skip and it is returned with true.
// Instrument records only take part when entry is set, so they count once per
// pass of an instance rather than once per line.
func (r *Registry) Match(line int, instrument api.InstrumentID, entry bool) (api.BreakpointRecord, bool) {
	for i := range r.records {
		rec := &r.records[i]
		switch rec.Kind {
		case api.KindLine:
			if rec.Line != line {
				continue
			}
		case api.KindInstrument:
			if !entry || rec.Instrument != instrument {
				continue
			}
		default:
			continue
		}
		if rec.Remaining > 0 {
			rec.Remaining--
			continue
		}
		rec.Remaining = rec.Skip
		return *rec, true
	}
	return api.BreakpointRecord{}, false
}

// Len returns the number of stored breakpoints.
func (r *Registry) Len() int {
	return len(r.records)
}

// Cap returns the fixed capacity.
func (r *Registry) Cap() int {
	return cap(r.records)
}

// Snapshot appends a copy of the stored records to dst.
func (r *Registry) Snapshot(dst []api.BreakpointRecord) []api.BreakpointRecord {
	return append(dst, r.records...)
}
