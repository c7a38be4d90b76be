// Package workerpool implements a bounded, priority-dispatching worker
// pool: a fixed set of goroutines drains a single shared queue, ordered
// first by task priority and, within a priority, by submission order.
//
// Design goals
//
//   - No deadlock, no lost wakeup, no leaked worker, regardless of how
//     Submit, Resize, SetLimits, EnableAutoAdjust and Destroy interleave.
//   - Priority affects dispatch order only — it never preempts a task
//     already running, and the pool never persists work across restarts.
//   - Resizing (manual or load-driven) never blocks a concurrent Submit
//     for longer than a single short lock acquisition.
//
// Architecture overview
//
// Three cooperating pieces; the queue and the pool core share the pool
// mutex, and the resize engine and controller add a lock each:
//
//   1. The priority queue (queue.go)
//      A container/heap-backed store ordered by (priority, submission
//      sequence), holding only queued tasks. Mutated exclusively by
//      whoever holds the pool mutex.
//
//   2. The pool core (pool.go, worker.go)
//      Owns the queue, the worker set, and every counter (thread_count,
//      idle_threads, started). Each worker is a goroutine that acquires
//      the pool mutex, waits for work or a terminal condition, dequeues
//      one task, releases the mutex, and runs the task with no pool lock
//      held.
//
//   3. The resize engine and auto-adjust controller (resize.go,
//      autoadjust.go)
//      Grow and shrink the worker set under a serialization mutex
//      acquired strictly before the pool mutex, so concurrent resizes are
//      totally ordered without stalling dispatch for the duration of a
//      goroutine spawn.
//
// Locking order
//
// resizeMu is always acquired before the pool mutex, never the reverse.
// The auto-adjust controller's own mutex is never held while acquiring
// the pool mutex: the controller goroutine releases it before it reads
// pool counters or calls Resize, and Submit and the workers take it only
// nested inside the pool mutex, to wake the controller. Apart from that
// wake-up, workers acquire nothing but the pool mutex. This total order
// (resizeMu, then the pool mutex, then the controller's mutex) is the
// deadlock-freedom argument.
//
// Liveness
//
// Every state transition that matters signals or broadcasts on the pool's
// condition variable, and a single per-pool watchdog goroutine additionally
// broadcasts once a second as insurance against a signal missed by some
// future change — the same bounded-wait rationale a hand-written
// condition-variable loop needs, applied once per pool instead of once
// per worker.
//
// Task retries
//
// A task's function may return an error; on error the pool retries it up
// to its retry policy's attempt count with backoff between attempts,
// honoring the task's context for cancelling only the wait between
// attempts — never a running invocation. A task submitted with the
// default policy runs exactly once, matching a pool with no retry
// semantics at all.
//
// What this package does not do
//
// It does not persist tasks across process restarts, does not guarantee
// fairness across callers beyond priority ordering, does not steal work
// across pool instances, and does not preempt a task already dispatched
// to a worker.
package workerpool
