// Package serialqueue implements an unbounded FIFO queue drained by a single worker goroutine.
//
// Exactly one task body runs at a time, in submission order. Submission never blocks.
// Tasks that have not started can be cancelled, either one at a time or in bulk; a
// cancelled task never runs.
package serialqueue

import (
	"sync"
	"sync/atomic"
)

type State int32

const (
	Pending State = iota
	Running
	Finished
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

type Task struct {
	fn    func()
	state atomic.Int32
	done  chan struct{}
}

func newTask(fn func()) *Task {
	return &Task{
		fn:   fn,
		done: make(chan struct{}),
	}
}

func (t *Task) State() State {
	return State(t.state.Load())
}

// Cancel prevents the task from running. It returns false if the task already started.
func (t *Task) Cancel() bool {
	if !t.state.CompareAndSwap(int32(Pending), int32(Cancelled)) {
		return false
	}
	close(t.done)
	return true
}

// Done is closed once the task has finished running or has been cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) run() {
	if !t.state.CompareAndSwap(int32(Pending), int32(Running)) {
		// Cancelled while queued
		return
	}
	defer close(t.done)
	defer t.state.Store(int32(Finished))
	t.fn()
}

type Queue struct {
	name string

	mu      sync.Mutex
	pending []*Task
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func New(name string) *Queue {
	q := &Queue{
		name:    name,
		pending: make([]*Task, 0),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go q.work()
	return q
}

func (q *Queue) Name() string {
	return q.name
}

// Submit appends fn to the queue and returns a handle to the task.
//
// Submitting to a closed queue returns an already cancelled task.
func (q *Queue) Submit(fn func()) *Task {
	task := newTask(fn)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		task.Cancel()
		return task
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()

	q.signal()
	return task
}

// Schedule runs fn on the queue's worker, asynchronously to the caller.
func (q *Queue) Schedule(fn func()) {
	q.Submit(fn)
}

// CancelAll cancels every task that has not started yet and returns them.
func (q *Queue) CancelAll() []*Task {
	q.mu.Lock()
	pending := q.pending
	q.pending = make([]*Task, 0)
	q.mu.Unlock()

	cancelled := make([]*Task, 0, len(pending))
	for _, task := range pending {
		if task.Cancel() {
			cancelled = append(cancelled, task)
		}
	}
	return cancelled
}

// Len returns the number of queued tasks, including cancelled ones not yet skipped by the worker.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting tasks, waits for the queued ones to run and stops the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
	<-q.done
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) next() (*Task, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			task := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return task, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}
		<-q.wake
	}
}

func (q *Queue) work() {
	defer close(q.done)
	for {
		task, ok := q.next()
		if !ok {
			return
		}
		task.run()
	}
}
