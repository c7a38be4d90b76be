package workerpool

// Option configures a Pool at Create time using the functional-options
// idiom, since this pool's knobs (bounds, retry defaults, pinning, error
// handlers, drain callback, metrics policy) are naturally optional
// add-ons rather than a single flat config block.
type Option[T any] func(*Pool[T])

// WithBounds sets the initial [min, max] thread bounds. Defaults to
// [1, 2*initialCount] if not supplied.
func WithBounds[T any](min, max int) Option[T] {
	return func(p *Pool[T]) {
		p.minThreads = min
		p.maxThreads = max
	}
}

// WithDefaultRetry overrides the pool-wide default retry policy applied
// to tasks that don't supply their own.
func WithDefaultRetry[T any](rp RetryPolicy) Option[T] {
	return func(p *Pool[T]) {
		if rp.Attempts > 0 {
			p.retryDefault.Attempts = rp.Attempts
		}
		if rp.Initial > 0 {
			p.retryDefault.Initial = rp.Initial
		}
		if rp.Max > 0 {
			p.retryDefault.Max = rp.Max
		}
	}
}

// WithPinning enables best-effort CPU pinning for every worker (Linux
// only; a no-op elsewhere). See affinity_linux.go.
func WithPinning[T any](enabled bool) Option[T] {
	return func(p *Pool[T]) { p.pinWorkers = enabled }
}

// WithJobErrorHandler registers a callback invoked when a task exhausts
// its retry attempts without succeeding.
func WithJobErrorHandler[T any](fn func(id uint64, name string, err error)) Option[T] {
	return func(p *Pool[T]) { p.onJobError = fn }
}

// WithInternalErrorHandler registers a callback invoked on unrecoverable
// internal conditions (e.g. a worker join exceeding its deadline). If not
// set, such conditions are logged via the pool's logger.
func WithInternalErrorHandler[T any](fn func(error)) Option[T] {
	return func(p *Pool[T]) { p.onInternalError = fn }
}

// WithMetrics replaces the pool's default AtomicMetrics counters with a
// caller-supplied MetricsPolicy, e.g. one that forwards to Prometheus or
// OpenTelemetry instead of just counting in memory.
func WithMetrics[T any](m MetricsPolicy) Option[T] {
	return func(p *Pool[T]) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithDrainCallback registers the callback invoked once per task still
// queued at Destroy time, so a caller can reclaim resources held by an
// argument that never got to run instead of it being silently dropped.
func WithDrainCallback[T any](fn func(arg any, id uint64, name string)) Option[T] {
	return func(p *Pool[T]) {
		p.drainCallback = func(arg T, id uint64, name string) { fn(arg, id, name) }
	}
}
