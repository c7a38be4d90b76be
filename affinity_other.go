//go:build !linux

package workerpool

// pinWorker is a no-op on platforms without a supported affinity syscall.
// Shape borrowed from momentics-hioload-ws/affinity's per-platform-file
// pattern, minus its cgo dependency: CPU pinning is Linux-only here.
func pinWorker(int) {}
