//go:build linux

package workerpool

import (
	"context"
	"runtime"

	lg "github.com/Andrej220/go-utils/zlog"
	"golang.org/x/sys/unix"
)

// pinWorker locks the calling goroutine to its OS thread and pins that
// thread to a single CPU core, best-effort. Failures are logged, not
// fatal: pinning never blocks dispatch or resize.
func pinWorker(cpu int) {
	runtime.LockOSThread()

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu % runtime.NumCPU())

	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		lg.FromContext(context.Background()).Warn("failed to pin worker to cpu",
			lg.Int("cpu", cpu),
			lg.Any("error", err),
		)
	}
}
