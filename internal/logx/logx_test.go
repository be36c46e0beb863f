package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-kdebug/api"
)

type inst struct{}

func (inst) ID() uint64                   { return 7 }
func (inst) Instrument() api.InstrumentID { return 1.5 }

func TestWithSessionAndInstanceAddFields(t *testing.T) {
	capture := &logCapture{}
	log := WithInstance(WithSession(New(capture, "info", "structured"), "s-1"), inst{})
	log.Info("hello")

	entry := capture.firstEntry(t)
	assert.Equal(t, "s-1", entry["session"])
	assert.Equal(t, "1.5", entry["instr"])
}

func TestLevelFiltersDebug(t *testing.T) {
	capture := &logCapture{}
	log := New(capture, "warn", "structured")
	log.Info("dropped")
	assert.Zero(t, capture.buf.Len())
	log.Warn("kept")
	assert.NotZero(t, capture.buf.Len())
}

func TestEmptySessionLeavesLoggerUntouched(t *testing.T) {
	capture := &logCapture{}
	log := WithSession(New(capture, "info", "structured"), "")
	log.Info("hello")
	entry := capture.firstEntry(t)
	_, ok := entry["session"]
	assert.False(t, ok)
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal(line, &entry), "parse log entry")
	return entry
}
