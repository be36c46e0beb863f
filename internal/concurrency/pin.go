//go:build !linux

// hioload-kdebug/internal/concurrency/pin.go
// Author: momentics <momentics@gmail.com>
//
// Platform-generic CPU pinning. Only Linux supports affinity; elsewhere the
// thread is locked but not bound to a core.

package concurrency

import (
	"runtime"

	"github.com/momentics/hioload-kdebug/api"
)

// PinCurrentThread locks the goroutine to its OS thread. Binding to cpuID is
// not supported on this platform and reports an error when requested.
func PinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 {
		return nil
	}
	return api.NewError(api.ErrCodeInternal, "cpu affinity not supported on "+runtime.GOOS)
}

// UnpinCurrentThread releases the OS thread lock.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}
