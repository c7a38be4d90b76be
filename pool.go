package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// watchdogInterval bounds every worker's condition-variable wait. Every
// state change that matters already broadcasts, so this is cheap
// insurance against a missed wakeup rather than a primary signalling
// path — a single per-pool ticker rather than one timer per worker.
const watchdogInterval = 1 * time.Second

// joinDeadline bounds how long Destroy waits for a single worker to
// notice shutdown and exit before it gives up waiting on that worker and
// moves on, logging the miss instead of blocking forever.
const joinDeadline = 5 * time.Second

// Pool is a bounded set of worker goroutines dispatched from a single
// priority-then-FIFO queue. It owns the queue, the worker set, and every
// pool-level counter, alongside a resize engine (resize.go) and an
// optional auto-adjust controller (autoadjust.go).
type Pool[T any] struct {
	id uuid.UUID

	mu   sync.Mutex
	cond *sync.Cond

	queue   *taskQueue[T]
	workers map[int]*worker[T]
	wg      sync.WaitGroup

	minThreads, maxThreads, threadCount, idleThreads, started int
	nextTaskID                                                uint64
	shutdown, destroyed                                       bool

	resizeMu sync.Mutex

	autoAdjust *controller[T]

	watchdogStop chan struct{}

	metrics MetricsPolicy

	retryDefault RetryPolicy
	pinWorkers   bool

	onJobError      func(id uint64, name string, err error)
	onInternalError func(error)
	drainCallback   CancelFunc[T]
}

// Create allocates a Pool and spawns exactly initialCount workers. If any
// worker fails to spawn, already-spawned workers are joined and Create
// returns ErrSpawnFailed — no half-alive pool is ever handed back to the
// caller.
func Create[T any](initialCount int, opts ...Option[T]) (*Pool[T], error) {
	if initialCount < 1 {
		return nil, fmt.Errorf("%w: initialCount must be >= 1, got %d", ErrArgumentInvalid, initialCount)
	}

	p := &Pool[T]{
		id:           uuid.New(),
		queue:        newTaskQueue[T](),
		workers:      make(map[int]*worker[T]),
		minThreads:   1,
		maxThreads:   2 * initialCount,
		nextTaskID:   1,
		metrics:      &AtomicMetrics{},
		retryDefault: RetryPolicy{Attempts: defaultAttempts, Initial: defaultInitialRetry, Max: defaultMaxRetry},
		watchdogStop: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}
	if p.minThreads < 1 {
		p.minThreads = 1
	}
	if p.maxThreads < p.minThreads {
		p.maxThreads = p.minThreads
	}

	if err := p.spawnN(initialCount); err != nil {
		p.mu.Lock()
		p.shutdown = true
		p.mu.Unlock()
		p.cond.Broadcast()
		p.joinAll()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	go p.watchdog()

	lg.FromContext(context.Background()).Info("pool created",
		lg.String("pool", p.id.String()),
		lg.Int("workers", initialCount),
	)
	return p, nil
}

// spawnN starts n additional workers, registering each under the next
// available id and marking it Idle. Called with the pool mutex NOT held
// (workers register themselves under the lock individually) except during
// Create, where no other goroutine can observe the pool yet.
func (p *Pool[T]) spawnN(n int) error {
	for i := 0; i < n; i++ {
		p.mu.Lock()
		id := p.started
		w := newWorker[T](id)
		p.workers[id] = w
		p.started++
		p.threadCount++
		p.idleThreads++
		p.wg.Add(1)
		p.mu.Unlock()

		if p.pinWorkers {
			pinned := id
			go func() {
				pinWorker(pinned)
				p.run(w)
			}()
		} else {
			go p.run(w)
		}
	}
	return nil
}

func (p *Pool[T]) watchdog() {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.cond.Broadcast()
		case <-p.watchdogStop:
			return
		}
	}
}

// Submit enqueues a task at the given priority and returns its assigned
// id. Rejects with ErrStateInvalid once the pool is shutting down.
func (p *Pool[T]) Submit(fn JobFunc[T], arg T, name string, prio Priority) (uint64, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: nil work function", ErrArgumentInvalid)
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return 0, ErrStateInvalid
	}

	id := p.nextTaskID
	p.nextTaskID++

	if name == "" {
		name = synthesizeName(id)
	} else {
		name = truncateName(name)
	}

	task := Task[T]{Fn: fn, Arg: arg, Name: name, Priority: prio, ID: id}
	p.queue.enqueue(task)
	queueSize := p.queue.size()
	p.cond.Signal()
	p.maybeSignalControllerLocked()
	p.mu.Unlock()

	lg.FromContext(context.Background()).Debug("task submitted",
		lg.String("pool", p.id.String()),
		lg.String("task", name),
		lg.String("priority", prio.String()),
		lg.Int("queue_size", queueSize),
	)
	return id, nil
}

// SubmitDefault submits with Priority NORMAL.
func (p *Pool[T]) SubmitDefault(fn JobFunc[T], arg T, name string) (uint64, error) {
	return p.Submit(fn, arg, name, NORMAL)
}

// Stats is a consistent snapshot of pool counters taken under the pool
// mutex. It may be stale the instant the call returns.
type Stats struct {
	ThreadCount int
	MinThreads  int
	MaxThreads  int
	IdleThreads int
	QueueSize   int

	// Started is the high-water mark of worker indices ever assigned:
	// one past the largest id any worker has held. It only grows, even
	// across a shrink, since a later grow reuses indices below it.
	Started  int
	Executed uint64
}

func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		ThreadCount: p.threadCount,
		MinThreads:  p.minThreads,
		MaxThreads:  p.maxThreads,
		IdleThreads: p.idleThreads,
		QueueSize:   p.queue.size(),
		Started:     p.started,
		Executed:    p.metrics.Executed(),
	}
}

// RunningTaskNames returns a snapshot copy of length ThreadCount: one
// name per logical worker slot, "[idle]" for workers not currently
// running a task.
func (p *Pool[T]) RunningTaskNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, p.threadCount)
	for id := 0; id < p.threadCount; id++ {
		w, ok := p.workers[id]
		if !ok {
			continue
		}
		names = append(names, w.runningTaskName)
	}
	return names
}

// FindByName reports the id of the first task (queued or running) whose
// name matches, and whether it is queued or already dispatched.
func (p *Pool[T]) FindByName(name string) (uint64, TaskState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		if w.status == Busy && w.runningTaskName == name {
			return w.runningTaskID, RunningState, true
		}
	}
	if id, ok := p.queue.findByName(name); ok {
		return id, Queued, true
	}
	return 0, Queued, false
}

// CancelByID cancels a queued task. Returns Running if the task has
// already been dispatched, NotFound if no such task exists.
func (p *Pool[T]) CancelByID(id uint64, cb CancelFunc[T]) (CancelResult, error) {
	if id == 0 {
		return NotFound, fmt.Errorf("%w: task id must be nonzero", ErrArgumentInvalid)
	}
	p.mu.Lock()
	task, ok := p.queue.cancelByID(id)
	if !ok {
		running := p.workerRunningIDLocked(id)
		p.mu.Unlock()
		if running {
			return Running, ErrRunningNotCancellable
		}
		return NotFound, ErrNotFound
	}
	p.mu.Unlock()

	if cb != nil {
		cb(task.Arg, task.ID, task.Name)
	}
	return Cancelled, nil
}

// CancelByName cancels the earliest-dispatched queued task with the given
// name.
func (p *Pool[T]) CancelByName(name string, cb CancelFunc[T]) (CancelResult, error) {
	p.mu.Lock()
	if id, ok := p.queue.findByName(name); ok {
		task, _ := p.queue.cancelByID(id)
		p.mu.Unlock()
		if cb != nil {
			cb(task.Arg, task.ID, task.Name)
		}
		return Cancelled, nil
	}
	for _, w := range p.workers {
		if w.status == Busy && w.runningTaskName == name {
			p.mu.Unlock()
			return Running, ErrRunningNotCancellable
		}
	}
	p.mu.Unlock()
	return NotFound, ErrNotFound
}

// workerRunningIDLocked reports whether some worker is currently running
// the task with the given id. Called with the pool mutex held.
func (p *Pool[T]) workerRunningIDLocked(id uint64) bool {
	for _, w := range p.workers {
		if w.status == Busy && w.runningTaskID == id {
			return true
		}
	}
	return false
}

func (p *Pool[T]) reportJobError(id uint64, name string, err error) {
	if err == nil {
		return
	}
	if p.onJobError != nil {
		p.onJobError(id, name, err)
	}
}

func (p *Pool[T]) reportInternalError(err error) {
	if p.onInternalError != nil {
		p.onInternalError(err)
		return
	}
	lg.FromContext(context.Background()).Error("internal pool error",
		lg.String("pool", p.id.String()),
		lg.Any("error", err),
	)
}

// Destroy shuts the pool down: rejects further submissions, wakes every
// worker, joins each with a bounded deadline, drains the queue (invoking
// the configured drain callback per surviving task, if any), and releases
// pool resources. Idempotent: a second call returns nil without further
// action.
func (p *Pool[T]) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	if p.autoAdjust != nil {
		p.mu.Unlock()
		_ = p.DisableAutoAdjust()
		p.mu.Lock()
	}
	alreadyShutdown := p.shutdown
	p.shutdown = true
	p.destroyed = true
	p.mu.Unlock()

	if !alreadyShutdown {
		p.cond.Broadcast()
		time.Sleep(5 * time.Millisecond)
		p.cond.Broadcast()
	}

	err := p.joinAll()

	p.mu.Lock()
	p.queue.drain(p.drainCallback)
	p.mu.Unlock()

	close(p.watchdogStop)

	lg.FromContext(context.Background()).Info("pool destroyed", lg.String("pool", p.id.String()))
	return err
}

// joinAll waits for every worker goroutine to exit, aggregating any
// deadline misses with multierr rather than reporting only the first one
// found — a stuck-shutdown diagnosis needs to see every offender.
func (p *Pool[T]) joinAll() error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(joinDeadline):
	}

	// Best-effort: goroutines cannot be forcibly cancelled the way an OS
	// thread can, so we log every worker still outstanding and continue
	// with cleanup rather than blocking the caller forever.
	var errs error
	p.mu.Lock()
	for id, w := range p.workers {
		select {
		case <-w.done:
		default:
			errs = multierr.Append(errs, fmt.Errorf("worker %d did not exit within %s", id, joinDeadline))
		}
	}
	p.mu.Unlock()
	if errs != nil {
		p.reportInternalError(errs)
	}

	return errs
}
