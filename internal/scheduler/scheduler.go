// Package scheduler runs delayed auto-reply tasks.
//
// A single dispatcher goroutine keeps accepted tasks in a min-heap keyed by
// due time and hands them to a fixed pool of workers when they come due. The
// number of tasks in flight (queued, waiting or executing) is capped; beyond
// the cap Schedule rejects with ErrQueueFull. Tasks live in memory only and
// are dropped on Shutdown.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidDelay = errors.New("scheduler: delay must not be negative")
	ErrQueueFull    = errors.New("scheduler: too many tasks in flight")
	// ErrTargetGone is returned by executors when the post was deleted
	// between submission and execution. Such tasks are dropped, not retried.
	ErrTargetGone = errors.New("scheduler: target post no longer exists")
	ErrCancelled  = errors.New("scheduler: task cancelled")
	ErrClosed     = errors.New("scheduler: shut down")
)

// Task describes one delayed reply: after Delay, a comment with Text is
// written to PostID on behalf of AuthorID. Values are captured at submission.
type Task struct {
	PostID   string
	AuthorID string
	Text     string
	Delay    time.Duration
}

// Executor performs a due task.
type Executor func(ctx context.Context, t Task) error

// Options configures a Scheduler.
type Options struct {
	Name        string        // metrics label, "replies" by default
	Workers     int           // executor goroutines, >= 1
	MaxInFlight int           // cap on queued + waiting + executing tasks
	ExecTimeout time.Duration // per-execution deadline
	Logger      *zerolog.Logger
}

func (o *Options) defaults() {
	if o.Name == "" {
		o.Name = "replies"
	}
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.MaxInFlight < 1 {
		o.MaxInFlight = 1024
	}
	if o.ExecTimeout <= 0 {
		o.ExecTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		l := log.With().Str("component", "reply-scheduler").Logger()
		o.Logger = &l
	}
}

// Scheduler executes tasks after their delay on a bounded worker pool.
type Scheduler struct {
	exec Executor
	opts Options
	log  zerolog.Logger
	m    metrics

	intake      chan *Handle
	ready       chan *Handle
	cancels     chan *Handle
	postCancels chan string

	inFlight atomic.Int64

	// posts tracks generations only for posts with tasks in flight; an
	// entry is dropped when its last task finishes.
	postMu sync.Mutex
	posts  map[string]*postState

	// closeMu guards closed and orders channel sends in Schedule against Shutdown.
	closeMu sync.RWMutex
	closed  bool

	ctx    context.Context
	stop   context.CancelFunc
	group  errgroup.Group
	parked []*Handle // heap contents left by the dispatcher on exit
	once   sync.Once
}

type postState struct {
	gen     uint64
	pending int
}

// New starts a scheduler running exec for each due task.
func New(exec Executor, opts Options) *Scheduler {
	opts.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		exec:        exec,
		opts:        opts,
		log:         *opts.Logger,
		m:           newMetrics(opts.Name),
		intake:      make(chan *Handle, opts.MaxInFlight),
		ready:       make(chan *Handle, opts.MaxInFlight),
		cancels:     make(chan *Handle, 64),
		postCancels: make(chan string, 64),
		posts:       make(map[string]*postState),
		ctx:         ctx,
		stop:        cancel,
	}

	s.group.Go(s.dispatch)
	for i := 0; i < opts.Workers; i++ {
		s.group.Go(s.worker)
	}
	s.log.Info().
		Int("workers", opts.Workers).
		Int("max_in_flight", opts.MaxInFlight).
		Msg("reply scheduler started")
	return s
}

// Schedule accepts t and returns immediately. It fails with ErrInvalidDelay
// for a negative delay and ErrQueueFull when the in-flight cap is reached.
func (s *Scheduler) Schedule(t Task) (*Handle, error) {
	if t.Delay < 0 {
		s.m.rejectArg.Inc()
		return nil, fmt.Errorf("%w: %s", ErrInvalidDelay, t.Delay)
	}

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	if n := s.inFlight.Add(1); n > int64(s.opts.MaxInFlight) {
		s.inFlight.Add(-1)
		s.m.rejectFull.Inc()
		s.log.Warn().
			Str("post_id", t.PostID).
			Int("max_in_flight", s.opts.MaxInFlight).
			Msg("auto-reply rejected: scheduler at capacity")
		return nil, ErrQueueFull
	}
	s.m.inFlight.Inc()

	now := time.Now()
	h := &Handle{
		id:        uuid.NewString(),
		task:      t,
		submitted: now,
		due:       now.Add(t.Delay),
		gen:       s.track(t.PostID),
		s:         s,
		index:     -1,
		done:      make(chan struct{}),
	}
	h.state.Store(int32(Queued))

	select {
	case s.intake <- h:
	default:
		// only reachable while cancelled handles still occupy the buffer
		s.untrack(t.PostID)
		s.inFlight.Add(-1)
		s.m.inFlight.Dec()
		s.m.rejectFull.Inc()
		return nil, ErrQueueFull
	}
	s.m.submitted.Inc()
	return h, nil
}

// CancelPost cancels every pending task targeting postID. Tasks already
// executing are not interrupted.
func (s *Scheduler) CancelPost(postID string) {
	s.postMu.Lock()
	ps, ok := s.posts[postID]
	if ok {
		ps.gen++
	}
	s.postMu.Unlock()
	if !ok {
		return
	}

	select {
	case s.postCancels <- postID:
	default:
		// dispatcher busy; stale tasks are still caught before execution
	}
}

// InFlight returns the number of tasks not yet in a terminal state.
func (s *Scheduler) InFlight() int { return int(s.inFlight.Load()) }

// Shutdown stops accepting tasks, lets running executions finish and drops
// everything still pending. It returns ctx.Err() if workers do not stop in
// time.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		s.stop()

		done := make(chan struct{})
		go func() {
			_ = s.group.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
			s.log.Error().Err(err).Msg("reply scheduler shutdown timed out")
			return
		}

		dropped := 0
		drop := func(h *Handle) {
			if !h.State().Terminal() {
				dropped++
			}
			s.finish(h, Cancelled, ErrClosed)
		}
		for _, h := range s.parked {
			drop(h)
		}
		s.parked = nil
		for _, ch := range []chan *Handle{s.intake, s.ready} {
		drain:
			for {
				select {
				case h := <-ch:
					drop(h)
				default:
					break drain
				}
			}
		}
		ev := s.log.Info()
		if dropped > 0 {
			ev = s.log.Warn()
		}
		ev.Int("dropped", dropped).Msg("reply scheduler stopped")
	})
	return err
}

// track registers one more in-flight task for postID and returns the post's
// current generation.
func (s *Scheduler) track(postID string) uint64 {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	ps, ok := s.posts[postID]
	if !ok {
		ps = &postState{}
		s.posts[postID] = ps
	}
	ps.pending++
	return ps.gen
}

func (s *Scheduler) untrack(postID string) {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	if ps, ok := s.posts[postID]; ok {
		if ps.pending--; ps.pending <= 0 {
			delete(s.posts, postID)
		}
	}
}

func (s *Scheduler) stale(h *Handle) bool {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	ps, ok := s.posts[h.task.PostID]
	return !ok || ps.gen != h.gen
}

// trackedPosts returns how many posts currently have tasks in flight.
func (s *Scheduler) trackedPosts() int {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	return len(s.posts)
}

func (s *Scheduler) notifyCancel(h *Handle) {
	select {
	case s.cancels <- h:
	default:
		// picked up when the dispatcher or a worker next touches h
	}
}

// finish moves h to a terminal state exactly once and releases its slot.
func (s *Scheduler) finish(h *Handle, st State, err error) {
	h.once.Do(func() {
		h.state.Store(int32(st))
		h.err = err
		s.untrack(h.task.PostID)
		s.inFlight.Add(-1)
		s.m.inFlight.Dec()
		s.m.finished.WithLabelValues(st.String()).Inc()
		close(h.done)
	})
}

// dispatch owns the timer queue. It moves tasks from intake into the heap,
// removes cancelled ones and releases due ones to the workers.
func (s *Scheduler) dispatch() error {
	var q timerQueue
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var wake <-chan time.Time
		if next := q.peek(); next != nil {
			resetTimer(timer, time.Until(next.due))
			wake = timer.C
		}

		select {
		case <-s.ctx.Done():
			s.parked = append(s.parked, q...)
			return nil

		case h := <-s.intake:
			if !h.advance(Queued, Waiting) || s.stale(h) {
				s.finish(h, Cancelled, ErrCancelled)
				continue
			}
			heap.Push(&q, h)

		case h := <-s.cancels:
			q.remove(h)
			s.finish(h, Cancelled, ErrCancelled)

		case postID := <-s.postCancels:
			var gone []*Handle
			for _, h := range q {
				if h.task.PostID == postID && s.stale(h) {
					gone = append(gone, h)
				}
			}
			for _, h := range gone {
				q.remove(h)
				s.finish(h, Cancelled, ErrCancelled)
			}

		case <-wake:
		}

		now := time.Now()
		for next := q.peek(); next != nil && !next.due.After(now); next = q.peek() {
			heap.Pop(&q)
			select {
			case s.ready <- next:
			case <-s.ctx.Done():
				s.parked = append(s.parked, next)
				s.parked = append(s.parked, q...)
				return nil
			}
		}
	}
}

func (s *Scheduler) worker() error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case h := <-s.ready:
			if s.ctx.Err() != nil {
				// shutting down; leave it for Shutdown to drop
				s.finish(h, Cancelled, ErrClosed)
				return nil
			}
			s.run(h)
		}
	}
}

func (s *Scheduler) run(h *Handle) {
	if s.stale(h) || !h.advance(Waiting, Executing) {
		s.finish(h, Cancelled, ErrCancelled)
		return
	}
	s.m.busy.Inc()
	defer s.m.busy.Dec()
	s.m.lag.Observe(time.Since(h.due).Seconds())

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ExecTimeout)
	defer cancel()

	err := s.safeExec(ctx, h.task)
	lg := s.log.With().Str("task_id", h.id).Str("post_id", h.task.PostID).Logger()
	switch {
	case err == nil:
		lg.Debug().Dur("waited", time.Since(h.submitted)).Msg("auto-reply delivered")
		s.finish(h, Completed, nil)
	case errors.Is(err, ErrTargetGone):
		lg.Info().Msg("auto-reply dropped: post no longer exists")
		s.finish(h, Failed, err)
	default:
		lg.Error().Err(err).Msg("auto-reply failed")
		s.finish(h, Failed, err)
	}
}

func (s *Scheduler) safeExec(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: executor panic: %v", r)
		}
	}()
	return s.exec(ctx, t)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
