package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugProbesDumpAndUnregister(t *testing.T) {
	dp := NewDebugProbes()
	calls := 0
	dp.RegisterProbe("b", func() any { calls++; return calls })
	dp.RegisterProbe("a", func() any { return "x" })
	RegisterPlatformProbes(dp)

	state := dp.DumpState()
	assert.Equal(t, 1, state["b"])
	assert.Equal(t, "x", state["a"])
	assert.Contains(t, state, "platform.cpus")
	assert.Equal(t, "a", dp.Names()[0])

	dp.UnregisterProbe("b")
	dp.UnregisterProbe("missing")
	assert.NotContains(t, dp.DumpState(), "b")
}
