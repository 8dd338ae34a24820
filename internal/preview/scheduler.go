package preview

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultConcurrency caps simultaneous thumbnail fetches. A front page holds
// thirty stories; without the cap a fast scroll would open a connection per
// card at once.
const DefaultConcurrency = 3

// ResolveFunc resolves one page URL to an Outcome. It must not block past
// its context.
type ResolveFunc func(ctx context.Context, pageURL string) Outcome

// DeliverFunc receives a finished resolution for the card identified by
// handle. It is called from worker goroutines and must be safe for
// concurrent use.
type DeliverFunc func(handle string, outcome Outcome)

type task struct {
	target string
	handle string
}

// Scheduler is the visibility-fed fetch queue. Tasks wait in FIFO order,
// at most limit of them run at once, and a target is enqueued only the first
// time its card is reported visible: the trigger is consumed on enqueue, so
// repeat reports for the same target are dropped.
type Scheduler struct {
	mu      sync.Mutex
	limit   int
	active  int
	pending []task
	seen    map[string]struct{}

	baseCtx context.Context
	resolve ResolveFunc
	deliver DeliverFunc
	log     *slog.Logger
}

// NewScheduler builds a Scheduler that resolves with resolve and hands
// results to deliver. ctx bounds the lifetime of all queued work.
func NewScheduler(ctx context.Context, limit int, resolve ResolveFunc, deliver DeliverFunc, log *slog.Logger) *Scheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit < 1 {
		limit = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		limit:   limit,
		seen:    make(map[string]struct{}),
		baseCtx: ctx,
		resolve: resolve,
		deliver: deliver,
		log:     log,
	}
}

// SetConcurrencyLimit changes how many resolutions may run at once. Raising
// the limit promotes pending tasks immediately; lowering it only affects
// future promotions, active tasks always run to completion.
func (s *Scheduler) SetConcurrencyLimit(n int) {
	if n < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
	s.drainLocked()
}

// OnBecameVisible reports that the card identified by handle entered the
// visibility margin for target. The first report enqueues a task and returns
// true; every later report for the same target is a no-op returning false.
func (s *Scheduler) OnBecameVisible(target, handle string) bool {
	if target == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[target]; dup {
		return false
	}
	s.seen[target] = struct{}{}
	s.pending = append(s.pending, task{target: target, handle: handle})
	s.drainLocked()
	return true
}

// drainLocked promotes pending tasks while slots are free. Callers hold s.mu.
func (s *Scheduler) drainLocked() {
	for s.active < s.limit && len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		s.active++
		go s.run(t)
	}
}

// run executes one task and releases its slot whatever happens. A panicking
// resolver is logged and treated as a negative outcome so the queue cannot
// stall behind one bad page.
func (s *Scheduler) run(t task) {
	outcome := s.safeResolve(t.target)
	if s.deliver != nil {
		s.deliver(t.handle, outcome)
	}

	s.mu.Lock()
	s.active--
	s.drainLocked()
	s.mu.Unlock()
}

func (s *Scheduler) safeResolve(target string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("thumbnail resolve panicked", "url", target, "panic", r)
			outcome = Outcome{}
		}
	}()
	return s.resolve(s.baseCtx, target)
}
