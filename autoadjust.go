package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

// controller is the auto-adjust background goroutine. It owns its own
// mutex/cond pair. The controller goroutine never holds that mutex while
// acquiring the pool mutex; Submit and the workers take it nested inside
// the pool mutex, only to read the watermarks and wake the controller
// (see maybeSignalControllerLocked).
type controller[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	highWM, lowWM int
	interval      time.Duration

	enabled bool
	done    chan struct{}
}

// EnableAutoAdjust starts (or reconfigures) the auto-adjust controller.
// If already enabled, parameters are updated and the controller is
// signalled to pick them up; otherwise a new controller goroutine is
// spawned.
func (p *Pool[T]) EnableAutoAdjust(highWM, lowWM int, interval time.Duration) error {
	if highWM <= 0 || lowWM < 0 || interval <= 0 {
		return fmt.Errorf("%w: highWM=%d lowWM=%d interval=%s", ErrArgumentInvalid, highWM, lowWM, interval)
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrStateInvalid
	}
	c := p.autoAdjust
	p.mu.Unlock()

	if c != nil {
		c.mu.Lock()
		c.highWM, c.lowWM, c.interval = highWM, lowWM, interval
		c.cond.Broadcast()
		c.mu.Unlock()
		return nil
	}

	c = &controller[T]{highWM: highWM, lowWM: lowWM, interval: interval, enabled: true, done: make(chan struct{})}
	c.cond = sync.NewCond(&c.mu)

	p.mu.Lock()
	p.autoAdjust = c
	p.mu.Unlock()

	go p.controlLoop(c)

	lg.FromContext(context.Background()).Info("auto-adjust enabled",
		lg.String("pool", p.id.String()),
		lg.Int("high_wm", highWM),
		lg.Int("low_wm", lowWM),
	)
	return nil
}

// DisableAutoAdjust stops the controller and joins its goroutine.
func (p *Pool[T]) DisableAutoAdjust() error {
	p.mu.Lock()
	c := p.autoAdjust
	p.mu.Unlock()
	if c == nil {
		return nil
	}

	c.mu.Lock()
	c.enabled = false
	c.cond.Broadcast()
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(joinDeadline):
		p.reportInternalError(fmt.Errorf("auto-adjust controller did not exit within %s", joinDeadline))
	}

	p.mu.Lock()
	p.autoAdjust = nil
	p.mu.Unlock()
	return nil
}

// controlLoop waits on the controller's own condition variable with a
// timeout of interval, and on every wake computes a resize decision by
// reading pool counters under the pool mutex, then calls Resize with no
// lock held — never from within the pool mutex, to avoid deadlocking
// with a worker that holds it while parked in Wait.
func (p *Pool[T]) controlLoop(c *controller[T]) {
	defer close(c.done)

	for {
		c.mu.Lock()
		waitWithTimeout(c.cond, c.interval)
		enabled := c.enabled
		highWM, lowWM := c.highWM, c.lowWM
		c.mu.Unlock()

		p.mu.Lock()
		shuttingDown := p.shutdown
		p.mu.Unlock()

		if !enabled || shuttingDown {
			return
		}

		p.mu.Lock()
		queueSize := p.queue.size()
		threadCount := p.threadCount
		idle := p.idleThreads
		min, max := p.minThreads, p.maxThreads
		p.mu.Unlock()

		target := threadCount
		switch {
		case queueSize > highWM && threadCount < max:
			target = threadCount + 1
		case idle > lowWM && threadCount > min:
			target = threadCount - 1
		}

		if target != threadCount {
			if err := p.Resize(target); err != nil {
				p.reportInternalError(fmt.Errorf("auto-adjust resize to %d: %w", target, err))
			}
		}
	}
}

// maybeSignalControllerLocked wakes the controller for sub-interval
// responsiveness whenever a submission or an idle-count transition
// crosses a watermark. Called with the pool mutex held.
func (p *Pool[T]) maybeSignalControllerLocked() {
	c := p.autoAdjust
	if c == nil {
		return
	}
	queueSize := p.queue.size()
	idle := p.idleThreads
	c.mu.Lock()
	crossed := queueSize > c.highWM || idle > c.lowWM
	if crossed {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// waitWithTimeout parks on cond (whose lock must already be held by the
// caller) until either it is signalled or timeout elapses, functioning
// like a bounded sync.Cond.Wait. Go's sync.Cond has no native timeout, so
// this arms a timer that broadcasts the same cond after the bound.
func waitWithTimeout(cond *sync.Cond, timeout time.Duration) {
	timer := time.AfterFunc(timeout, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
