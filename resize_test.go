package workerpool_test

import (
	"sync"
	"testing"
	"time"

	wp "github.com/kestrelpool/taskpool"
)

func TestResizeIdempotent(t *testing.T) {
	p, err := wp.Create[int](2, wp.WithBounds[int](1, 8))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	if err := p.Resize(4); err != nil {
		t.Fatalf("resize(4): %v", err)
	}
	if err := p.Resize(4); err != nil {
		t.Fatalf("resize(4) again should be a no-op, got %v", err)
	}
	if got := p.Stats().ThreadCount; got != 4 {
		t.Fatalf("threadCount = %d, want 4", got)
	}
}

func TestResizeOutOfRangeLeavesStateUnchanged(t *testing.T) {
	p, err := wp.Create[int](2, wp.WithBounds[int](1, 4))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	before := p.Stats()
	if err := p.Resize(100); err == nil {
		t.Fatalf("expected ErrOutOfRange")
	}
	after := p.Stats()
	if before.ThreadCount != after.ThreadCount {
		t.Fatalf("threadCount changed on a rejected resize: %d -> %d", before.ThreadCount, after.ThreadCount)
	}
}

func TestResizeOnShutdownPoolFails(t *testing.T) {
	p, err := wp.Create[int](1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := p.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := p.Resize(2); err != wp.ErrStateInvalid {
		t.Fatalf("resize after destroy = %v, want ErrStateInvalid", err)
	}
}

func TestSetLimitsTriggersImplicitResize(t *testing.T) {
	p, err := wp.Create[int](5, wp.WithBounds[int](1, 10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	if err := p.SetLimits(1, 3); err != nil {
		t.Fatalf("setLimits: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Stats().ThreadCount == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("threadCount never settled to 3, got %d", p.Stats().ThreadCount)
}

func TestShrinkReleasesWorkers(t *testing.T) {
	p, err := wp.Create[int](6, wp.WithBounds[int](1, 6))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	if err := p.Resize(2); err != nil {
		t.Fatalf("resize(2): %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Stats().ThreadCount == 2 {
			// the excess workers should have exited on their own.
			done := make(chan struct{})
			id, err := p.SubmitDefault(func(int) error {
				close(done)
				return nil
			}, 0, "still-works")
			if err != nil {
				t.Fatalf("submit after shrink: %v", err)
			}
			if id == 0 {
				t.Fatalf("expected nonzero id")
			}
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("pool stopped dispatching after shrink")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("threadCount never settled to 2, got %d", p.Stats().ThreadCount)
}

// TestGrowAfterShrinkReachesReportedCapacity guards against worker
// indices being handed out from an ever-increasing spawn counter instead
// of the current thread range: a bug there lets a post-shrink grow spawn
// workers whose index already exceeds the new (higher) threadCount, so
// they self-exit immediately and real capacity silently stays below what
// Resize reported succeeding. This submits enough concurrently-blocking
// tasks to require every reported worker to be alive simultaneously.
func TestGrowAfterShrinkReachesReportedCapacity(t *testing.T) {
	p, err := wp.Create[int](6, wp.WithBounds[int](1, 6))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	if err := p.Resize(2); err != nil {
		t.Fatalf("shrink to 2: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.Stats().ThreadCount != 2 {
		time.Sleep(10 * time.Millisecond)
	}

	if err := p.Resize(6); err != nil {
		t.Fatalf("grow back to 6: %v", err)
	}
	if got := p.Stats().ThreadCount; got != 6 {
		t.Fatalf("threadCount = %d, want 6", got)
	}

	var wg sync.WaitGroup
	started := make(chan struct{}, 6)
	release := make(chan struct{})
	for i := 0; i < 6; i++ {
		wg.Add(1)
		if _, err := p.SubmitDefault(func(int) error {
			defer wg.Done()
			started <- struct{}{}
			<-release
			return nil
		}, 0, ""); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	seen := 0
	timeout := time.After(2 * time.Second)
	for seen < 6 {
		select {
		case <-started:
			seen++
		case <-timeout:
			close(release)
			t.Fatalf("only %d/6 workers ever ran concurrently; real capacity fell below reported ThreadCount", seen)
		}
	}
	close(release)
	wg.Wait()
}
