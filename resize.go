package workerpool

import (
	"context"
	"fmt"

	lg "github.com/Andrej220/go-utils/zlog"
	"golang.org/x/sync/errgroup"
)

// SetLimits updates the pool's [min, max] thread bounds. If the current
// thread count falls outside the new bounds, a resize to the nearest
// boundary is triggered after the bounds are committed.
func (p *Pool[T]) SetLimits(newMin, newMax int) error {
	if newMin < 1 || newMax < newMin {
		return fmt.Errorf("%w: min=%d max=%d", ErrArgumentInvalid, newMin, newMax)
	}

	p.mu.Lock()
	p.minThreads = newMin
	p.maxThreads = newMax
	current := p.threadCount
	p.mu.Unlock()

	var target int
	switch {
	case current < newMin:
		target = newMin
	case current > newMax:
		target = newMax
	default:
		return nil
	}
	return p.Resize(target)
}

// Resize changes the logical worker count to target, serialized by
// resizeMu so concurrent resize calls are totally ordered. resizeMu is
// always acquired before the pool mutex, never the reverse — the
// deadlock-freedom argument for this package's locking scheme.
func (p *Pool[T]) Resize(target int) error {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrStateInvalid
	}
	if target < p.minThreads || target > p.maxThreads {
		p.mu.Unlock()
		return fmt.Errorf("%w: target=%d bounds=[%d,%d]", ErrOutOfRange, target, p.minThreads, p.maxThreads)
	}
	current := p.threadCount
	p.mu.Unlock()

	if target == current {
		return nil
	}
	if target > current {
		return p.growTo(target, current)
	}
	return p.shrinkTo(target)
}

// growTo spawns workers for indices [current, target) concurrently via
// errgroup, keeping the slow part of a resize (spawning goroutines)
// outside the pool mutex. If any spawn fails, the workers that did start
// are marked EXITING_RESIZE and threadCount is corrected to the count
// that actually survived.
//
// Indices are assigned from current, never from a monotonically growing
// spawn counter: a worker's own exit check is "my index >= threadCount",
// so an id handed out beyond the current logical count would make that
// worker exit before ever running a task, quietly capping real capacity
// below what Resize reported succeeding. A shrink immediately followed
// by a grow can still find one of these indices occupied by a worker
// that hasn't yet noticed its own EXITING_RESIZE transition; growTo
// waits for that worker to fully retire before handing its index to a
// replacement, so two goroutines never contend for the same slot.
func (p *Pool[T]) growTo(target, current int) error {
	ids := make([]int, 0, target-current)
	for id := current; id < target; id++ {
		ids = append(ids, id)
	}

	p.mu.Lock()
	stale := make([]*worker[T], 0, len(ids))
	for _, id := range ids {
		if w, ok := p.workers[id]; ok {
			stale = append(stale, w)
		}
	}
	p.mu.Unlock()
	for _, w := range stale {
		<-w.done
	}

	spawned := make([]*worker[T], 0, len(ids))
	g, _ := errgroup.WithContext(context.Background())
	results := make(chan *worker[T], len(ids))

	for _, id := range ids {
		id := id
		g.Go(func() error {
			p.mu.Lock()
			w := newWorker[T](id)
			p.workers[id] = w
			p.idleThreads++
			p.wg.Add(1)
			p.mu.Unlock()

			results <- w
			return nil
		})
	}

	err := g.Wait()
	close(results)
	for w := range results {
		spawned = append(spawned, w)
	}

	p.mu.Lock()
	if err != nil {
		for _, w := range spawned {
			w.status = ExitingResize
		}
		p.threadCount = current + len(spawned)
		if p.started < p.threadCount {
			p.started = p.threadCount
		}
		p.mu.Unlock()
		p.cond.Broadcast()
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	p.threadCount = target
	if p.started < target {
		p.started = target
	}
	p.mu.Unlock()

	for _, w := range spawned {
		if p.pinWorkers {
			w := w
			go func() {
				pinWorker(w.id)
				p.run(w)
			}()
		} else {
			go p.run(w)
		}
	}
	p.cond.Broadcast()

	lg.FromContext(context.Background()).Info("pool grown",
		lg.String("pool", p.id.String()),
		lg.Int("thread_count", target),
	)
	return nil
}

// shrinkTo drops the logical thread count to target immediately and
// broadcasts; workers whose index falls outside [0, target) observe this
// on their next loop iteration and transition to EXITING_RESIZE
// themselves. Resize returns before those workers have actually exited.
func (p *Pool[T]) shrinkTo(target int) error {
	p.mu.Lock()
	p.threadCount = target
	p.mu.Unlock()
	p.cond.Broadcast()

	lg.FromContext(context.Background()).Info("pool shrinking",
		lg.String("pool", p.id.String()),
		lg.Int("thread_count", target),
	)
	return nil
}
