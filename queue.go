package workerpool

import "container/heap"

// queueItem wraps a Task with the bookkeeping container/heap needs (its
// current heap index) plus a monotonic sequence number that breaks ties
// between equal priorities in submission order, giving the queue its
// stable priority-then-FIFO ordering.
type queueItem[T any] struct {
	task  Task[T]
	seq   uint64
	index int
}

// heapStore is the container/heap.Interface implementation backing
// taskQueue. Ordering is (priority ascending, seq ascending): a smaller
// priority value sorts first, and among equal priorities the earlier
// arrival sorts first.
type heapStore[T any] []*queueItem[T]

func (h heapStore[T]) Len() int { return len(h) }

func (h heapStore[T]) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h heapStore[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *heapStore[T]) Push(x any) {
	it := x.(*queueItem[T])
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *heapStore[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// taskQueue is the pool's priority-then-FIFO task queue. It is not safe
// for concurrent use on its own: every method here is called only while
// the owning Pool holds its mutex.
type taskQueue[T any] struct {
	h      heapStore[T]
	byID   map[uint64]*queueItem[T]
	nextSeq uint64
}

func newTaskQueue[T any]() *taskQueue[T] {
	q := &taskQueue[T]{byID: make(map[uint64]*queueItem[T])}
	heap.Init(&q.h)
	return q
}

// enqueue inserts task at the position that preserves stable
// priority-then-insertion-order traversal.
func (q *taskQueue[T]) enqueue(task Task[T]) {
	it := &queueItem[T]{task: task, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.h, it)
	q.byID[task.ID] = it
}

// dequeueHighest removes and returns the task with the smallest
// (priority, seq) — the next one due for dispatch.
func (q *taskQueue[T]) dequeueHighest() (Task[T], bool) {
	if q.h.Len() == 0 {
		return *new(Task[T]), false
	}
	it := heap.Pop(&q.h).(*queueItem[T])
	delete(q.byID, it.task.ID)
	return it.task, true
}

// findByName scans every queued task with the given name and returns the
// id of the match that would be dispatched earliest (i.e. the smallest
// (priority, seq) tuple).
func (q *taskQueue[T]) findByName(name string) (uint64, bool) {
	var best *queueItem[T]
	for _, it := range q.h {
		if it.task.Name != name {
			continue
		}
		if best == nil || less2(it, best) {
			best = it
		}
	}
	if best == nil {
		return 0, false
	}
	return best.task.ID, true
}

func less2[T any](a, b *queueItem[T]) bool {
	if a.task.Priority != b.task.Priority {
		return a.task.Priority < b.task.Priority
	}
	return a.seq < b.seq
}

// cancelByID unlinks the queued task with the given id, if present.
func (q *taskQueue[T]) cancelByID(id uint64) (Task[T], bool) {
	it, ok := q.byID[id]
	if !ok {
		return *new(Task[T]), false
	}
	heap.Remove(&q.h, it.index)
	delete(q.byID, id)
	return it.task, true
}

// cancelByName unlinks the earliest-dispatched queued task with the given
// name, if present.
func (q *taskQueue[T]) cancelByName(name string) (Task[T], bool) {
	id, ok := q.findByName(name)
	if !ok {
		return *new(Task[T]), false
	}
	return q.cancelByID(id)
}

func (q *taskQueue[T]) size() int { return q.h.Len() }

// drain releases every queued node without running its function. If cb is
// non-nil it is invoked once per surviving task so the caller can reclaim
// resources held by the argument (resolves the task-argument-ownership
// open question via option (b): an explicit drain callback).
func (q *taskQueue[T]) drain(cb CancelFunc[T]) {
	for _, it := range q.h {
		if cb != nil {
			cb(it.task.Arg, it.task.ID, it.task.Name)
		}
	}
	q.h = q.h[:0]
	q.byID = make(map[uint64]*queueItem[T])
}
