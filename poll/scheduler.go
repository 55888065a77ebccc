// Package poll implements the adaptive poll scheduler that watches one
// question at a time until the backend delivers its answer.
//
// The scheduler owns the tracked item, arms at most one check timer at a
// time, derives each delay from the reported queue position and emits the
// answer exactly once. Every timer captures the item id and an epoch that is
// bumped on each StartTracking and Reset; a timer or check result whose
// capture no longer matches is dropped without side effects. Ids may repeat
// (the same question searched twice), which is why identity alone is not
// enough.
//
// Network failures on a status check are logged and reported to the sink but
// never retried: the cycle stalls until the caller starts tracking again.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/st-keller/jimmy-client/backoff"
	"github.com/st-keller/jimmy-client/diag"
	"github.com/st-keller/jimmy-client/offer"
	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/types"
)

// ElapsedInterval is the tick of the elapsed-seconds display timer.
const ElapsedInterval = time.Second

var (
	// ErrNotTracking is returned when an operation targets an item that is not being tracked.
	ErrNotTracking = errors.New("poll: item is not being tracked")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("poll: scheduler stopped")
)

// Checker performs one status check.
type Checker interface {
	Check(ctx context.Context, id types.ItemID) (types.StatusResult, error)
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context, id types.ItemID) (types.StatusResult, error)

// Check implements Checker.
func (f CheckFunc) Check(ctx context.Context, id types.ItemID) (types.StatusResult, error) {
	return f(ctx, id)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithDelay replaces backoff.Delay.
func WithDelay(fn func(position int) time.Duration) Option {
	return func(s *Scheduler) { s.delay = fn }
}

// WithLogs sets the diagnostics log.
func WithLogs(logs *diag.RecentLogs) Option {
	return func(s *Scheduler) { s.logs = logs }
}

// WithElapsedInterval sets the elapsed display tick; zero disables it.
func WithElapsedInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.elapsedEvery = d }
}

// WithSpawn sets how status checks are launched. The default runs each
// check on its own goroutine; tests pass a synchronous runner.
func WithSpawn(spawn func(func())) Option {
	return func(s *Scheduler) { s.spawn = spawn }
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	State     State
	ID        types.ItemID
	Position  int // -1 until the first check reports
	Epoch     uint64
	Pending   bool
	InFlight  bool
	Elapsed   int
	Delivered int
}

// Scheduler drives status checks for the currently tracked item.
// It is safe for concurrent use.
type Scheduler struct {
	checker      Checker
	sink         sink.Sink
	clock        Clock
	delay        func(int) time.Duration
	logs         *diag.RecentLogs
	elapsedEvery time.Duration
	spawn        func(func())

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	epoch     uint64
	current   types.ItemID
	position  int
	timer     Timer
	due       time.Time
	elapsed   Timer
	seconds   int
	inFlight  bool
	bumpError bool
	offer     offer.Policy
	delivered int
	stopped   bool
}

// New creates a Scheduler. The sink is wrapped so a panicking renderer is
// logged instead of crashing the poll loop.
func New(checker Checker, s sink.Sink, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	sched := &Scheduler{
		checker:      checker,
		clock:        RealClock{},
		delay:        backoff.Delay,
		elapsedEvery: ElapsedInterval,
		spawn:        func(f func()) { go f() },
		ctx:          ctx,
		cancel:       cancel,
		position:     -1,
	}
	for _, opt := range opts {
		opt(sched)
	}
	if sched.logs == nil {
		sched.logs = diag.NopLogs()
	}
	sched.sink = sink.Safe(s, func(event string, recovered any, stack []byte) {
		sched.logs.Error("Sink callback panicked", map[string]interface{}{
			"event": event,
			"panic": recovered,
			"stack": string(stack),
		})
	})

	return sched
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// StartTracking supersedes whatever is tracked and checks id immediately.
func (s *Scheduler) StartTracking(id types.ItemID) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}

	s.stopTimersLocked()
	s.epoch++
	s.state = Tracking
	s.current = id
	s.position = -1
	s.seconds = 0
	s.bumpError = false
	s.offer.Reset()
	s.inFlight = true
	epoch := s.epoch
	s.startElapsedLocked(id, epoch)
	s.mu.Unlock()

	s.logs.Info("Tracking started", map[string]interface{}{
		"item_id": id.String(),
		"epoch":   epoch,
	})

	s.spawn(func() { s.runCheck(id, epoch) })
	return nil
}

// Reset returns to Idle and cancels the pending check and elapsed timers.
// Calling it repeatedly is harmless.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// ResetItem resets only if id is the tracked item. It reports whether it did.
func (s *Scheduler) ResetItem(id types.ItemID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Tracking || s.current != id {
		return false
	}
	s.resetLocked()
	return true
}

// Refresh performs an out-of-band check of the tracked item, carrying the
// escalation error flag into the result. A pending timer is kept, so the
// regular cycle is unaffected; if a check is already in flight the flag
// rides on that check instead.
func (s *Scheduler) Refresh(id types.ItemID, bumpError bool) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.state != Tracking || s.current != id {
		s.mu.Unlock()
		return ErrNotTracking
	}

	s.bumpError = s.bumpError || bumpError
	if s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	epoch := s.epoch
	s.mu.Unlock()

	s.spawn(func() { s.runCheck(id, epoch) })
	return nil
}

// Stop resets and abandons any in-flight check. The scheduler cannot be reused.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.resetLocked()
	s.mu.Unlock()

	s.cancel()
}

// Snapshot returns the current scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:     s.state,
		ID:        s.current,
		Position:  s.position,
		Epoch:     s.epoch,
		Pending:   s.timer != nil,
		InFlight:  s.inFlight,
		Elapsed:   s.seconds,
		Delivered: s.delivered,
	}
}

// State returns the current poll state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports whether a check timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Current returns the tracked item and its last known position.
func (s *Scheduler) Current() (id types.ItemID, position int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Tracking {
		return 0, -1, false
	}
	return s.current, s.position, true
}

// ============================================================================
// CHECK CYCLE
// ============================================================================

// validLocked is the epoch guard: a captured (id, epoch) may act only while
// it still names the tracked item.
func (s *Scheduler) validLocked(id types.ItemID, epoch uint64) bool {
	return s.state == Tracking && s.epoch == epoch && s.current == id
}

// scheduleNextLocked arms the single check timer for the tracked item and
// returns the time until it fires. An already armed timer is kept.
func (s *Scheduler) scheduleNextLocked(id types.ItemID, epoch uint64, position int) time.Duration {
	if s.timer != nil {
		return max(s.due.Sub(s.clock.Now()), 0)
	}
	delay := s.delay(position)
	s.due = s.clock.Now().Add(delay)
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(id, epoch) })
	return delay
}

// fire runs when the check timer expires.
func (s *Scheduler) fire(id types.ItemID, epoch uint64) {
	s.mu.Lock()
	if !s.validLocked(id, epoch) {
		s.mu.Unlock()
		s.logs.Debug("Dropped stale poll timer", map[string]interface{}{
			"item_id": id.String(),
			"epoch":   epoch,
		})
		return
	}
	s.timer = nil
	if s.inFlight {
		// the in-flight check arms the next timer when it resolves
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.spawn(func() { s.runCheck(id, epoch) })
}

func (s *Scheduler) runCheck(id types.ItemID, epoch uint64) {
	result, err := s.checker.Check(s.ctx, id)
	s.onCheckResult(id, epoch, result, err)
}

// onCheckResult applies one status check outcome.
func (s *Scheduler) onCheckResult(id types.ItemID, epoch uint64, result types.StatusResult, err error) {
	s.mu.Lock()
	if !s.validLocked(id, epoch) {
		s.mu.Unlock()
		s.logs.Debug("Dropped stale check result", map[string]interface{}{
			"item_id": id.String(),
			"epoch":   epoch,
		})
		return
	}

	s.inFlight = false
	bumpError := s.bumpError
	s.bumpError = false

	if err != nil {
		s.mu.Unlock()
		s.logs.Error("Status check failed, polling stalled", map[string]interface{}{
			"item_id": id.String(),
			"error":   err.Error(),
		})
		s.sink.CheckFailed(id, err)
		return
	}

	if result.Ready {
		s.state = Delivered
		s.delivered++
		s.stopTimersLocked()
		s.mu.Unlock()

		s.logs.Info("Answer delivered", map[string]interface{}{
			"item_id": id.String(),
			"links":   len(result.Links),
		})
		s.sink.Answer(sink.AnswerEvent{ID: id, Answer: result.Answer, Links: result.Links})

		s.mu.Lock()
		if s.epoch == epoch {
			s.resetLocked()
		}
		s.mu.Unlock()
		return
	}

	position := result.Position
	if position < 0 {
		position = 0
	}
	s.position = position
	delay := s.scheduleNextLocked(id, epoch, position)
	render := s.offer.ShouldRender(position, bumpError)
	s.mu.Unlock()

	s.logs.Debug("Answer not ready", map[string]interface{}{
		"item_id":    id.String(),
		"position":   position,
		"next_check": delay.String(),
		"tier":       backoff.TierOf(position).String(),
	})
	s.sink.Progress(sink.ProgressEvent{ID: id, Position: position, NextCheck: delay, BumpError: bumpError})
	if render {
		s.sink.Offer(sink.OfferEvent{ID: id, Position: position, BumpError: bumpError})
	}
}

// ============================================================================
// TIMERS
// ============================================================================

func (s *Scheduler) resetLocked() {
	s.stopTimersLocked()
	s.epoch++
	s.state = Idle
	s.current = 0
	s.position = -1
	s.seconds = 0
	s.inFlight = false
	s.bumpError = false
	s.offer.Reset()
}

func (s *Scheduler) stopTimersLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.elapsed != nil {
		s.elapsed.Stop()
		s.elapsed = nil
	}
}

// startElapsedLocked arms the periodic elapsed-seconds display timer.
func (s *Scheduler) startElapsedLocked(id types.ItemID, epoch uint64) {
	if s.elapsedEvery <= 0 {
		return
	}
	s.elapsed = s.clock.AfterFunc(s.elapsedEvery, func() { s.tick(id, epoch) })
}

func (s *Scheduler) tick(id types.ItemID, epoch uint64) {
	s.mu.Lock()
	if !s.validLocked(id, epoch) {
		s.mu.Unlock()
		return
	}
	s.seconds++
	seconds := s.seconds
	s.startElapsedLocked(id, epoch)
	s.mu.Unlock()

	s.sink.Elapsed(id, seconds)
}
