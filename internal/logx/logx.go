// Package logx
// Author: momentics <momentics@gmail.com>
//
// Logger construction and field helpers on top of pslog.

package logx

import (
	"context"
	"io"
	"strings"

	"pkt.systems/pslog"

	"github.com/momentics/hioload-kdebug/api"
)

// New builds a logger writing to w. level is one of trace, debug, info,
// warn, error; mode is console or structured. Unknown values fall back to
// info and console.
func New(w io.Writer, level, mode string) pslog.Logger {
	opts := pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel}
	if strings.EqualFold(mode, "structured") || strings.EqualFold(mode, "json") {
		opts.Mode = pslog.ModeStructured
		opts.NoColor = true
		opts.VerboseFields = true
	}
	switch strings.ToLower(level) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	}
	return pslog.NewWithOptions(w, opts)
}

// Discard returns a logger that writes nowhere.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.ErrorLevel})
}

// Ctx returns the logger bound to ctx.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with a debug session id.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithInstance annotates the logger with instance coordinates.
func WithInstance(log pslog.Logger, inst api.Instance) pslog.Logger {
	if inst == nil {
		return log
	}
	return log.With("instance", inst.ID(), "instr", inst.Instrument().String())
}
