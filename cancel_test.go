package workerpool_test

import (
	"testing"
	"time"

	wp "github.com/kestrelpool/taskpool"
)

func TestCancelQueuedTaskLeavesRunningTaskAlone(t *testing.T) {
	p, err := wp.Create[int](1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	runningStarted := make(chan struct{})
	runningRelease := make(chan struct{})
	runningDone := make(chan struct{})
	if _, err := p.Submit(func(int) error {
		close(runningStarted)
		<-runningRelease
		close(runningDone)
		return nil
	}, 0, "long-runner", wp.NORMAL); err != nil {
		t.Fatalf("submit long-runner: %v", err)
	}
	<-runningStarted

	queuedID, err := p.Submit(func(int) error { return nil }, 0, "queued-victim", wp.NORMAL)
	if err != nil {
		t.Fatalf("submit queued-victim: %v", err)
	}

	result, err := p.CancelByID(queuedID, nil)
	if err != nil {
		t.Fatalf("cancel queued task: %v", err)
	}
	if result != wp.Cancelled {
		t.Fatalf("cancel result = %v, want Cancelled", result)
	}

	if _, _, found := p.FindByName("queued-victim"); found {
		t.Fatalf("cancelled task still discoverable")
	}

	close(runningRelease)
	select {
	case <-runningDone:
	case <-time.After(time.Second):
		t.Fatal("long-runner never completed; cancel must not have touched it")
	}
}

func TestCancelRunningTaskReturnsRunning(t *testing.T) {
	p, err := wp.Create[int](1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	started := make(chan struct{})
	release := make(chan struct{})
	id, err := p.Submit(func(int) error {
		close(started)
		<-release
		return nil
	}, 0, "in-flight", wp.NORMAL)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	result, err := p.CancelByID(id, nil)
	if err != wp.ErrRunningNotCancellable {
		t.Fatalf("cancel error = %v, want ErrRunningNotCancellable", err)
	}
	if result != wp.Running {
		t.Fatalf("cancel result = %v, want Running", result)
	}
	close(release)
}

func TestCancelUnknownIDReturnsNotFound(t *testing.T) {
	p, err := wp.Create[int](1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	result, err := p.CancelByID(999999, nil)
	if err != wp.ErrNotFound {
		t.Fatalf("cancel error = %v, want ErrNotFound", err)
	}
	if result != wp.NotFound {
		t.Fatalf("cancel result = %v, want NotFound", result)
	}
}

func TestCancelByIDZeroIsInvalidArgument(t *testing.T) {
	p, err := wp.Create[int](1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	if _, err := p.CancelByID(0, nil); err == nil {
		t.Fatalf("expected error for id 0")
	}
}

func TestCancelByNameInvokesCallbackWithArg(t *testing.T) {
	p, err := wp.Create[int](1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer p.Destroy()

	runningStarted := make(chan struct{})
	runningRelease := make(chan struct{})
	if _, err := p.Submit(func(int) error {
		close(runningStarted)
		<-runningRelease
		return nil
	}, 0, "occupy", wp.NORMAL); err != nil {
		t.Fatalf("submit occupy: %v", err)
	}
	<-runningStarted
	defer close(runningRelease)

	if _, err := p.Submit(func(int) error { return nil }, 42, "named", wp.HIGH); err != nil {
		t.Fatalf("submit named: %v", err)
	}

	var gotArg int
	var gotName string
	result, err := p.CancelByName("named", func(arg int, id uint64, name string) {
		gotArg = arg
		gotName = name
	})
	if err != nil {
		t.Fatalf("cancelByName: %v", err)
	}
	if result != wp.Cancelled {
		t.Fatalf("result = %v, want Cancelled", result)
	}
	if gotArg != 42 || gotName != "named" {
		t.Fatalf("callback got arg=%d name=%q, want 42, \"named\"", gotArg, gotName)
	}
}
