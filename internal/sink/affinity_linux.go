//go:build linux

package sink

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPU locks the calling goroutine to its OS thread and sets that
// thread's scheduling affinity to cpu, so the sink's poll loop stays on
// one core instead of migrating mid-run.
func pinToCPU(cpu int) error {
	runtime.LockOSThread()
	var mask unix.CPUSet
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
