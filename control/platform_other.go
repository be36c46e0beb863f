//go:build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>
//
// Generic platform debug probes.

package control

import "runtime"

// RegisterPlatformProbes sets portable debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
