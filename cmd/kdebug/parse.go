package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/internal/engine"
)

// instanceSpec is one --instance flag: instrument=line[@depth],line...
type instanceSpec struct {
	instr  api.InstrumentID
	points []engine.Point
}

// parseTarget splits "target[:skip]".
func parseTarget(s string) (string, int, error) {
	target, skipStr, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return target, 0, nil
	}
	skip, err := strconv.Atoi(skipStr)
	if err != nil || skip < 0 {
		return "", 0, fmt.Errorf("invalid skip count in %q", s)
	}
	return target, skip, nil
}

func parseLineBreakpoint(s string) (line, skip int, err error) {
	target, skip, err := parseTarget(s)
	if err != nil {
		return 0, 0, err
	}
	line, err = strconv.Atoi(target)
	if err != nil || line < 0 {
		return 0, 0, fmt.Errorf("invalid line in %q", s)
	}
	return line, skip, nil
}

func parseInstrBreakpoint(s string) (api.InstrumentID, int, error) {
	target, skip, err := parseTarget(s)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.ParseFloat(target, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid instrument in %q", s)
	}
	return api.InstrumentID(id), skip, nil
}

func parseInstance(s string) (instanceSpec, error) {
	instrStr, linesStr, found := strings.Cut(strings.TrimSpace(s), "=")
	if !found || linesStr == "" {
		return instanceSpec{}, fmt.Errorf("instance %q: want instrument=line,line", s)
	}
	id, err := strconv.ParseFloat(instrStr, 64)
	if err != nil {
		return instanceSpec{}, fmt.Errorf("instance %q: invalid instrument", s)
	}
	spec := instanceSpec{instr: api.InstrumentID(id)}
	for _, field := range strings.Split(linesStr, ",") {
		lineStr, depthStr, hasDepth := strings.Cut(field, "@")
		line, err := strconv.Atoi(lineStr)
		if err != nil || line < 0 {
			return instanceSpec{}, fmt.Errorf("instance %q: invalid line %q", s, field)
		}
		p := engine.Point{Line: line}
		if hasDepth {
			if p.Depth, err = strconv.Atoi(depthStr); err != nil || p.Depth < 0 {
				return instanceSpec{}, fmt.Errorf("instance %q: invalid depth %q", s, field)
			}
		}
		spec.points = append(spec.points, p)
	}
	return spec, nil
}

// parseCommand maps the --on-pause value to a session action.
func parseCommand(s string) (api.StepCommand, error) {
	switch strings.ToLower(s) {
	case "continue", "c":
		return api.Continue, nil
	case "next", "n":
		return api.Next, nil
	case "step", "into", "s":
		return api.StepInto, nil
	case "over", "o":
		return api.StepOver, nil
	case "stop":
		return api.Stop, nil
	default:
		return 0, fmt.Errorf("unknown command %q", s)
	}
}
