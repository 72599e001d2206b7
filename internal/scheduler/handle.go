package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle position of a scheduled task.
type State int32

const (
	Queued    State = iota // accepted, not yet seen by the dispatcher
	Waiting                // sleeping until its due time
	Executing              // running on a worker
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Waiting:
		return "waiting"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s >= Completed }

// Handle tracks one submitted task.
type Handle struct {
	id        string
	task      Task
	submitted time.Time
	due       time.Time
	gen       uint64

	s     *Scheduler
	state atomic.Int32
	index int // heap position; owned by the dispatcher, -1 when not queued

	once sync.Once
	err  error
	done chan struct{}
}

// ID returns the task id.
func (h *Handle) ID() string { return h.id }

// Task returns the submitted task.
func (h *Handle) Task() Task { return h.task }

// DueAt is the earliest instant the task may run.
func (h *Handle) DueAt() time.Time { return h.due }

// State returns the current state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Done is closed once the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the terminal error, if any. Valid after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Cancel prevents the task from running. It returns false when the task is
// already executing or finished.
func (h *Handle) Cancel() bool {
	for {
		cur := h.State()
		if cur != Queued && cur != Waiting {
			return false
		}
		if h.state.CompareAndSwap(int32(cur), int32(Cancelled)) {
			h.s.notifyCancel(h)
			return true
		}
	}
}

// advance moves from one state to the next, failing if another party
// (usually Cancel) changed it first.
func (h *Handle) advance(from, to State) bool {
	return h.state.CompareAndSwap(int32(from), int32(to))
}
