package workerpool

import (
	"sync/atomic"
)

// MetricsPolicy defines hooks used by the pool to report execution
// activity to an external observer. A pool accepts any implementation
// via WithMetrics, so a caller can plug in a Prometheus- or
// OpenTelemetry-backed policy without this package depending on either.
//
// There is deliberately no queued-jobs hook here: queue depth is always
// read straight from taskQueue.size() under the pool mutex (see
// Pool.Stats), so a second, independently-incremented counter tracking
// the same number would just be a shadow of state the queue already
// owns and could drift from it under concurrent cancel/submit/dispatch.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {
	// IncExecuted records that one task ran to completion or exhausted
	// its retries, successful or not.
	IncExecuted()

	// Executed returns the total number of tasks IncExecuted has seen.
	Executed() uint64
}

// AtomicMetrics is the default MetricsPolicy: a single lock-free counter.
type AtomicMetrics struct {
	executed atomic.Uint64
}

// IncExecuted increments the executed counter by one.
func (m *AtomicMetrics) IncExecuted() {
	m.executed.Add(1)
}

// Executed returns the total number of executed tasks.
func (m *AtomicMetrics) Executed() uint64 {
	return m.executed.Load()
}

// NoopMetrics discards every update; use it when metrics collection is
// disabled and even the atomic increment is unwanted.
type NoopMetrics struct{}

func (m *NoopMetrics) IncExecuted()     {}
func (m *NoopMetrics) Executed() uint64 { return 0 }
