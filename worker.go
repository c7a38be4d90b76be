package workerpool

import (
	"context"
	"fmt"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
)

// workerStatus is a worker's position in its lifecycle state machine.
type workerStatus int

const (
	Idle workerStatus = iota
	Busy
	ExitingShutdown
	ExitingResize
	Dead
)

func (s workerStatus) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Busy:
		return "BUSY"
	case ExitingShutdown:
		return "EXITING_SHUTDOWN"
	case ExitingResize:
		return "EXITING_RESIZE"
	case Dead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

const idleSlotName = "[idle]"

// worker is one long-lived goroutine consuming tasks from the pool queue.
// Every field is written only while the owning Pool's mutex is held —
// either by the worker itself or, for status/name during resize, by the
// resize engine.
type worker[T any] struct {
	id              int
	status          workerStatus
	runningTaskName string
	runningTaskID   uint64
	done            chan struct{}
}

func newWorker[T any](id int) *worker[T] {
	return &worker[T]{
		id:              id,
		status:          Idle,
		runningTaskName: idleSlotName,
		done:            make(chan struct{}),
	}
}

// run is the worker's main loop: acquire the pool mutex, wait while the
// queue is empty and no terminal predicate holds, dequeue and run one
// task with no pool lock held, then restore state and broadcast.
func (p *Pool[T]) run(w *worker[T]) {
	defer close(w.done)
	defer p.wg.Done()

	for {
		p.mu.Lock()

		for {
			if p.shutdown && p.queue.size() == 0 {
				w.status = ExitingShutdown
				p.idleThreads--
				p.mu.Unlock()
				p.retireWorker(w)
				return
			}
			if w.id >= p.threadCount {
				w.status = ExitingResize
				p.idleThreads--
				p.mu.Unlock()
				p.retireWorker(w)
				return
			}
			if p.queue.size() > 0 {
				break
			}
			p.cond.Wait()
		}

		task, ok := p.queue.dequeueHighest()
		if !ok {
			p.mu.Unlock()
			continue
		}
		p.idleThreads--
		w.status = Busy
		w.runningTaskName = task.Name
		w.runningTaskID = task.ID
		p.mu.Unlock()

		p.execute(w, task)

		p.mu.Lock()
		if w.id >= p.threadCount {
			w.status = ExitingResize
			p.mu.Unlock()
			p.retireWorker(w)
			return
		}
		w.runningTaskName = idleSlotName
		w.runningTaskID = 0
		w.status = Idle
		p.idleThreads++
		p.maybeSignalControllerLocked()
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

// retireWorker removes a fully-exited worker from the pool's bookkeeping.
// Called with no lock held.
func (p *Pool[T]) retireWorker(w *worker[T]) {
	p.mu.Lock()
	delete(p.workers, w.id)
	p.mu.Unlock()
	lg.FromContext(context.Background()).Info("worker exited",
		lg.String("pool", p.id.String()),
		lg.Int("worker_id", w.id),
		lg.String("reason", w.status.String()),
	)
}

// execute runs a task's function outside any pool lock, applying the
// task's retry policy (falling back to the pool default) with backoff
// between attempts.
func (p *Pool[T]) execute(w *worker[T], task Task[T]) {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger := lg.FromContext(ctx).With(lg.String("task", task.Name), lg.String("pool", p.id.String()))

	pol := p.retryDefault
	if task.Retry != nil {
		if task.Retry.Attempts > 0 {
			pol.Attempts = task.Retry.Attempts
		}
		if task.Retry.Initial > 0 {
			pol.Initial = task.Retry.Initial
		}
		if task.Retry.Max > 0 {
			pol.Max = task.Retry.Max
		}
	}

	bo := boff.New(pol.Initial, pol.Max, time.Now().UnixNano())

	var lastErr error
	for attempt := 1; attempt <= pol.Attempts; attempt++ {
		if err := p.callJob(ctx, task); err == nil {
			logger.Info("task completed", lg.Int("worker_id", w.id), lg.Int("attempt", attempt))
			p.metrics.IncExecuted()
			return
		} else {
			lastErr = err
			if attempt == pol.Attempts {
				break
			}
			delay := bo.Next()
			logger.Warn("task attempt failed; backing off",
				lg.Int("attempt", attempt),
				lg.String("sleep", delay.String()),
				lg.Any("error", err),
			)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				lastErr = ctx.Err()
				goto done
			}
		}
	}
done:
	p.metrics.IncExecuted()
	logger.Error("task failed", lg.Any("error", lastErr))
	p.reportJobError(task.ID, task.Name, lastErr)
}

// callJob invokes task.Fn, converting a panic into an error so a
// misbehaving job degrades the same way a returned error does: through
// the normal retry/backoff loop and reportJobError, rather than taking
// the worker goroutine (and the whole process) down with it. A panic is
// also surfaced to reportInternalError immediately, since it signals a
// bug in the job rather than an ordinary, expected failure.
func (p *Pool[T]) callJob(ctx context.Context, task Task[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
			lg.FromContext(ctx).Error("task panicked",
				lg.String("task", task.Name),
				lg.Any("panic", r),
			)
			p.reportInternalError(err)
		}
	}()
	return task.Fn(task.Arg)
}
