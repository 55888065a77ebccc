package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/st-keller/jimmy-client/diag"
	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/types"
)

type response struct {
	result types.StatusResult
	err    error
}

func notReady(position int) response {
	return response{result: types.StatusResult{Position: position}}
}

func ready(answer string) response {
	return response{result: types.StatusResult{Ready: true, Answer: answer}}
}

// scriptedChecker replays responses per item; the last response repeats.
type scriptedChecker struct {
	mu        sync.Mutex
	responses map[types.ItemID][]response
	calls     []types.ItemID
	lastCtx   context.Context
	onCheck   func(id types.ItemID)
}

func newScriptedChecker() *scriptedChecker {
	return &scriptedChecker{responses: make(map[types.ItemID][]response)}
}

func (c *scriptedChecker) script(id types.ItemID, rs ...response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[id] = rs
}

func (c *scriptedChecker) Check(ctx context.Context, id types.ItemID) (types.StatusResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, id)
	c.lastCtx = ctx
	rs := c.responses[id]
	var r response
	if len(rs) > 0 {
		r = rs[0]
		if len(rs) > 1 {
			c.responses[id] = rs[1:]
		}
	}
	hook := c.onCheck
	c.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return r.result, r.err
}

func (c *scriptedChecker) Calls() []types.ItemID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ItemID(nil), c.calls...)
}

// leakyClock never stops timers, like a time.AfterFunc callback that is
// already running when Stop is called.
type leakyClock struct{ *ManualClock }

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (c leakyClock) AfterFunc(d time.Duration, f func()) Timer {
	c.ManualClock.AfterFunc(d, f)
	return leakyTimer{}
}

func syncSpawn(f func()) { f() }

func newTestScheduler(t *testing.T, checker Checker, s sink.Sink, opts ...Option) (*Scheduler, *ManualClock) {
	t.Helper()
	clock := NewManualClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	base := []Option{WithClock(clock), WithSpawn(syncSpawn), WithElapsedInterval(0)}
	sched := New(checker, s, append(base, opts...)...)
	t.Cleanup(sched.Stop)
	return sched, clock
}

func containsDuration(ds []time.Duration, want time.Duration) bool {
	for _, d := range ds {
		if d == want {
			return true
		}
	}
	return false
}

func TestStartTrackingNearFront(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	rec := sink.NewRecorder()
	sched, clock := newTestScheduler(t, checker, rec)

	if err := sched.StartTracking(42); err != nil {
		t.Fatalf("StartTracking failed: %v", err)
	}

	if calls := checker.Calls(); len(calls) != 1 || calls[0] != 42 {
		t.Fatalf("expected one immediate check for 42, got %v", calls)
	}
	pending := clock.Pending()
	if len(pending) != 1 || pending[0] != 10*time.Second {
		t.Errorf("pending timers = %v, want [10s]", pending)
	}

	snap := sched.Snapshot()
	if snap.State != Tracking || snap.ID != 42 || snap.Position != 5 || !snap.Pending {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	progress := rec.ProgressEvents()
	if len(progress) != 1 || progress[0].NextCheck != 10*time.Second || progress[0].Position != 5 {
		t.Errorf("progress = %+v", progress)
	}
	if offers := rec.OfferEvents(); len(offers) != 0 {
		t.Errorf("offer shown at position 5: %+v", offers)
	}
}

func TestDeepQueueDelayAndOffer(t *testing.T) {
	tests := []struct {
		name      string
		position  int
		wantDelay time.Duration
	}{
		{"linear", 50, 255 * time.Second},
		{"capped", 300, 1200 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newScriptedChecker()
			checker.script(42, notReady(tt.position))
			rec := sink.NewRecorder()
			sched, clock := newTestScheduler(t, checker, rec)

			if err := sched.StartTracking(42); err != nil {
				t.Fatal(err)
			}
			if pending := clock.Pending(); len(pending) != 1 || pending[0] != tt.wantDelay {
				t.Fatalf("pending = %v, want [%v]", pending, tt.wantDelay)
			}

			offers := rec.OfferEvents()
			if len(offers) != 1 || offers[0].Position != tt.position || offers[0].BumpError {
				t.Fatalf("offers = %+v", offers)
			}

			// next tick at the same depth must not render the offer again
			clock.Advance(tt.wantDelay)
			if calls := checker.Calls(); len(calls) != 2 {
				t.Fatalf("expected second check, calls = %v", calls)
			}
			if offers := rec.OfferEvents(); len(offers) != 1 {
				t.Errorf("offer re-rendered without error: %+v", offers)
			}
		})
	}
}

func TestSupersededTimerIsDropped(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	checker.script(99, notReady(5))
	rec := sink.NewRecorder()
	clock := NewManualClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	sched := New(checker, rec, WithClock(leakyClock{clock}), WithSpawn(syncSpawn), WithElapsedInterval(time.Second))
	defer sched.Stop()

	if err := sched.StartTracking(42); err != nil {
		t.Fatal(err)
	}
	if err := sched.StartTracking(99); err != nil {
		t.Fatal(err)
	}

	clock.Advance(10 * time.Second)

	calls := checker.Calls()
	want := []types.ItemID{42, 99, 99}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}

	for _, ev := range rec.ProgressEvents()[1:] {
		if ev.ID != 99 {
			t.Errorf("stale progress for %d after supersede", ev.ID)
		}
	}
	if ticks := rec.Ticks(); ticks != 10 {
		t.Errorf("ticks = %d, want 10 (only the live item ticks)", ticks)
	}
}

func TestRepeatedIDUsesEpoch(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	rec := sink.NewRecorder()
	clock := NewManualClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	sched := New(checker, rec, WithClock(leakyClock{clock}), WithSpawn(syncSpawn), WithElapsedInterval(0))
	defer sched.Stop()

	_ = sched.StartTracking(42)
	first := sched.Snapshot().Epoch
	_ = sched.StartTracking(42)
	if sched.Snapshot().Epoch == first {
		t.Fatal("epoch not bumped on repeated StartTracking")
	}

	clock.Advance(10 * time.Second)

	// two immediate checks plus one live timer; the first timer is stale
	if calls := checker.Calls(); len(calls) != 3 {
		t.Errorf("calls = %v, want 3 checks", calls)
	}
}

func TestGuardDropsStaleFire(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	checker.script(99, notReady(5))
	rec := sink.NewRecorder()
	sched, _ := newTestScheduler(t, checker, rec)

	_ = sched.StartTracking(42)
	stale := sched.Snapshot().Epoch
	_ = sched.StartTracking(99)

	before := len(rec.ProgressEvents())
	sched.fire(42, stale)
	sched.onCheckResult(42, stale, types.StatusResult{Ready: true, Answer: "late"}, nil)

	if calls := checker.Calls(); len(calls) != 2 {
		t.Errorf("stale fire issued a check: %v", calls)
	}
	if len(rec.ProgressEvents()) != before || len(rec.AnswerEvents()) != 0 {
		t.Error("stale fire produced a visible side effect")
	}
	if id, _, ok := sched.Current(); !ok || id != 99 {
		t.Errorf("current = %d (%v), want 99", id, ok)
	}
}

type stateCapturingSink struct {
	*sink.Recorder
	sched *Scheduler
	seen  []State
}

func (s *stateCapturingSink) Answer(ev sink.AnswerEvent) {
	s.seen = append(s.seen, s.sched.State())
	s.Recorder.Answer(ev)
}

func TestAnswerDeliveredOnce(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5), ready("42"))
	capture := &stateCapturingSink{Recorder: sink.NewRecorder()}
	sched, clock := newTestScheduler(t, checker, capture, WithElapsedInterval(time.Second))
	capture.sched = sched

	_ = sched.StartTracking(42)
	clock.Advance(10 * time.Second)

	answers := capture.AnswerEvents()
	if len(answers) != 1 || answers[0].Answer != "42" || answers[0].ID != 42 {
		t.Fatalf("answers = %+v", answers)
	}
	if len(capture.seen) != 1 || capture.seen[0] != Delivered {
		t.Errorf("state during delivery = %v, want [delivered]", capture.seen)
	}

	snap := sched.Snapshot()
	if snap.State != Idle || snap.Pending || snap.Delivered != 1 {
		t.Errorf("after delivery snapshot = %+v", snap)
	}
	if pending := clock.Pending(); len(pending) != 0 {
		t.Errorf("timers still armed after delivery: %v", pending)
	}

	clock.Advance(time.Hour)
	if calls := checker.Calls(); len(calls) != 2 {
		t.Errorf("checks after delivery: %v", calls)
	}
	if len(capture.AnswerEvents()) != 1 {
		t.Error("answer delivered more than once")
	}
}

func TestTimerAfterDeliveryIsNoop(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5), ready("done"))
	rec := sink.NewRecorder()
	clock := NewManualClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	sched := New(checker, rec, WithClock(leakyClock{clock}), WithSpawn(syncSpawn), WithElapsedInterval(0))
	defer sched.Stop()

	_ = sched.StartTracking(42)
	if err := sched.Refresh(42, false); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(rec.AnswerEvents()) != 1 {
		t.Fatal("expected delivery from refresh")
	}

	clock.Advance(10 * time.Second)
	if calls := checker.Calls(); len(calls) != 2 {
		t.Errorf("leaked timer acted after delivery: %v", calls)
	}
}

func TestCheckErrorStallsPolling(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, response{err: errors.New("connection refused")})
	rec := sink.NewRecorder()
	logs := diag.NopLogs()
	sched, clock := newTestScheduler(t, checker, rec, WithLogs(logs), WithElapsedInterval(time.Second))

	_ = sched.StartTracking(42)
	clock.Advance(time.Hour)

	if calls := checker.Calls(); len(calls) != 1 {
		t.Errorf("check retried after network error: %v", calls)
	}
	if failures := rec.Failures(); len(failures) != 1 {
		t.Errorf("failures = %v", failures)
	}
	if sched.State() != Tracking {
		t.Errorf("state = %v, want tracking", sched.State())
	}
	if sched.Snapshot().Pending {
		t.Error("check timer armed after network error")
	}
	if rec.Ticks() != 3600 {
		t.Errorf("elapsed ticks = %d, want 3600", rec.Ticks())
	}
	if logs.Stats().Errors != 1 {
		t.Errorf("expected one error log, got %+v", logs.Stats())
	}
}

func TestResetIsIdempotent(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(50))
	sched, clock := newTestScheduler(t, checker, sink.NewRecorder(), WithElapsedInterval(time.Second))

	_ = sched.StartTracking(42)
	sched.Reset()
	once := sched.Snapshot()
	sched.Reset()
	twice := sched.Snapshot()

	for _, snap := range []Snapshot{once, twice} {
		if snap.State != Idle || snap.Pending || snap.InFlight || snap.Position != -1 {
			t.Errorf("snapshot after reset = %+v", snap)
		}
	}
	if pending := clock.Pending(); len(pending) != 0 {
		t.Errorf("timers armed after reset: %v", pending)
	}
	if _, _, ok := sched.Current(); ok {
		t.Error("Current reports tracking after reset")
	}
}

func TestResetItem(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	sched, _ := newTestScheduler(t, checker, sink.NewRecorder())

	_ = sched.StartTracking(42)
	if sched.ResetItem(7) {
		t.Error("ResetItem reset a different item")
	}
	if sched.State() != Tracking {
		t.Fatal("tracking lost")
	}
	if !sched.ResetItem(42) {
		t.Error("ResetItem did not reset the tracked item")
	}
	if sched.State() != Idle {
		t.Errorf("state = %v, want idle", sched.State())
	}
}

func TestRefreshKeepsSingleTimer(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(50))
	rec := sink.NewRecorder()
	sched, clock := newTestScheduler(t, checker, rec)

	_ = sched.StartTracking(42)
	if err := sched.Refresh(42, true); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if pending := clock.Pending(); len(pending) != 1 {
		t.Errorf("pending timers = %v, want exactly one", pending)
	}
	offers := rec.OfferEvents()
	if len(offers) != 2 || !offers[1].BumpError {
		t.Errorf("offer not re-rendered with error: %+v", offers)
	}

	clock.Advance(255 * time.Second)
	if calls := checker.Calls(); len(calls) != 3 {
		t.Errorf("calls = %v, want 3", calls)
	}
	if pending := clock.Pending(); len(pending) != 1 {
		t.Errorf("pending timers after fire = %v, want one", pending)
	}
}

func TestRefreshReportsArmedTimer(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(50))
	rec := sink.NewRecorder()
	sched, clock := newTestScheduler(t, checker, rec)

	_ = sched.StartTracking(42)
	clock.Advance(100 * time.Second)
	if err := sched.Refresh(42, true); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	progress := rec.ProgressEvents()
	if len(progress) != 2 {
		t.Fatalf("progress = %+v, want 2 events", progress)
	}
	if progress[0].NextCheck != 255*time.Second {
		t.Errorf("first NextCheck = %s, want 4m15s", progress[0].NextCheck)
	}
	if progress[1].NextCheck != 155*time.Second {
		t.Errorf("NextCheck after refresh = %s, want the armed timer's 2m35s", progress[1].NextCheck)
	}
	if pending := clock.Pending(); len(pending) != 1 {
		t.Errorf("pending timers = %v, want one", pending)
	}
}

func TestRefreshDuringInFlightCheck(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	rec := sink.NewRecorder()
	sched, _ := newTestScheduler(t, checker, rec)

	var refreshErr error
	checker.onCheck = func(id types.ItemID) {
		checker.onCheck = nil
		refreshErr = sched.Refresh(id, true)
	}

	_ = sched.StartTracking(42)

	if refreshErr != nil {
		t.Fatalf("Refresh during flight: %v", refreshErr)
	}
	if calls := checker.Calls(); len(calls) != 1 {
		t.Errorf("refresh issued a second concurrent check: %v", calls)
	}
	offers := rec.OfferEvents()
	if len(offers) != 1 || !offers[0].BumpError || offers[0].Position != 5 {
		t.Errorf("bump error not carried by in-flight check: %+v", offers)
	}
}

func TestRefreshNotTracking(t *testing.T) {
	sched, _ := newTestScheduler(t, newScriptedChecker(), sink.NewRecorder())
	if err := sched.Refresh(42, true); !errors.Is(err, ErrNotTracking) {
		t.Errorf("Refresh on idle scheduler = %v, want ErrNotTracking", err)
	}
}

func TestStop(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	sched, clock := newTestScheduler(t, checker, sink.NewRecorder())

	_ = sched.StartTracking(42)
	sched.Stop()

	if err := sched.StartTracking(43); !errors.Is(err, ErrStopped) {
		t.Errorf("StartTracking after Stop = %v, want ErrStopped", err)
	}
	if err := sched.Refresh(42, false); !errors.Is(err, ErrStopped) {
		t.Errorf("Refresh after Stop = %v, want ErrStopped", err)
	}
	if checker.lastCtx.Err() == nil {
		t.Error("check context not cancelled by Stop")
	}
	if pending := clock.Pending(); len(pending) != 0 {
		t.Errorf("timers armed after Stop: %v", pending)
	}
}

type panickingSink struct{ sink.Nop }

func (panickingSink) Progress(sink.ProgressEvent) { panic("template missing") }

func TestSinkPanicIsContained(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	logs := diag.NopLogs()
	sched, clock := newTestScheduler(t, checker, panickingSink{}, WithLogs(logs))

	_ = sched.StartTracking(42)

	if pending := clock.Pending(); len(pending) != 1 {
		t.Errorf("poll cycle broken by sink panic: %v", pending)
	}
	if logs.Stats().Errors != 1 {
		t.Errorf("panic not logged: %+v", logs.Stats())
	}
}

func TestElapsedCounterResets(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(5))
	checker.script(43, notReady(5))
	rec := sink.NewRecorder()
	sched, clock := newTestScheduler(t, checker, rec, WithElapsedInterval(time.Second))

	_ = sched.StartTracking(42)
	clock.Advance(3 * time.Second)
	if got := sched.Snapshot().Elapsed; got != 3 {
		t.Errorf("elapsed = %d, want 3", got)
	}

	_ = sched.StartTracking(43)
	if got := sched.Snapshot().Elapsed; got != 0 {
		t.Errorf("elapsed after supersede = %d, want 0", got)
	}

	sched.Reset()
	clock.Advance(5 * time.Second)
	if rec.Ticks() != 3 {
		t.Errorf("ticks = %d, want 3", rec.Ticks())
	}
}

func TestNegativePositionClamped(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(-4))
	rec := sink.NewRecorder()
	sched, _ := newTestScheduler(t, checker, rec)

	_ = sched.StartTracking(42)
	if _, pos, _ := sched.Current(); pos != 0 {
		t.Errorf("position = %d, want 0", pos)
	}
}

func TestRealClockDelivers(t *testing.T) {
	checker := newScriptedChecker()
	checker.script(42, notReady(1), ready("42"))
	rec := sink.NewRecorder()
	sched := New(checker, rec, WithDelay(func(int) time.Duration { return 10 * time.Millisecond }))
	defer sched.Stop()

	if err := sched.StartTracking(42); err != nil {
		t.Fatal(err)
	}

	select {
	case <-rec.Answered():
	case <-time.After(2 * time.Second):
		t.Fatal("answer not delivered with real clock")
	}
	if answers := rec.AnswerEvents(); len(answers) != 1 || answers[0].Answer != "42" {
		t.Errorf("answers = %+v", answers)
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Tracking.String() != "tracking" || Delivered.String() != "delivered" {
		t.Error("unexpected state names")
	}
	if State(7).String() != "State(7)" {
		t.Errorf("unexpected invalid state name %q", State(7).String())
	}
}
