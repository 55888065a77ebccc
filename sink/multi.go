package sink

import (
	"runtime/debug"

	"github.com/st-keller/jimmy-client/types"
)

// Multi fans every event out to each sink in order.
type Multi []Sink

// Question implements Sink.
func (m Multi) Question(id types.ItemID, text string) {
	for _, s := range m {
		s.Question(id, text)
	}
}

// Progress implements Sink.
func (m Multi) Progress(ev ProgressEvent) {
	for _, s := range m {
		s.Progress(ev)
	}
}

// Offer implements Sink.
func (m Multi) Offer(ev OfferEvent) {
	for _, s := range m {
		s.Offer(ev)
	}
}

// Answer implements Sink.
func (m Multi) Answer(ev AnswerEvent) {
	for _, s := range m {
		s.Answer(ev)
	}
}

// Elapsed implements Sink.
func (m Multi) Elapsed(id types.ItemID, seconds int) {
	for _, s := range m {
		s.Elapsed(id, seconds)
	}
}

// CheckFailed implements Sink.
func (m Multi) CheckFailed(id types.ItemID, err error) {
	for _, s := range m {
		s.CheckFailed(id, err)
	}
}

// BumpPending implements Sink.
func (m Multi) BumpPending(id types.ItemID) {
	for _, s := range m {
		s.BumpPending(id)
	}
}

// BumpComplete implements Sink.
func (m Multi) BumpComplete(id types.ItemID) {
	for _, s := range m {
		s.BumpComplete(id)
	}
}

// PanicHandler is told which callback panicked, with the recovered value and stack.
type PanicHandler func(event string, recovered any, stack []byte)

// Safe wraps s so a panicking callback is recovered and reported instead of
// unwinding into the caller.
func Safe(s Sink, onPanic PanicHandler) Sink {
	if s == nil {
		s = Nop{}
	}
	return &safe{next: s, onPanic: onPanic}
}

type safe struct {
	next    Sink
	onPanic PanicHandler
}

func (s *safe) guard(event string) {
	if r := recover(); r != nil && s.onPanic != nil {
		s.onPanic(event, r, debug.Stack())
	}
}

// Question implements Sink.
func (s *safe) Question(id types.ItemID, text string) {
	defer s.guard("question")
	s.next.Question(id, text)
}

// Progress implements Sink.
func (s *safe) Progress(ev ProgressEvent) {
	defer s.guard("progress")
	s.next.Progress(ev)
}

// Offer implements Sink.
func (s *safe) Offer(ev OfferEvent) {
	defer s.guard("offer")
	s.next.Offer(ev)
}

// Answer implements Sink.
func (s *safe) Answer(ev AnswerEvent) {
	defer s.guard("answer")
	s.next.Answer(ev)
}

// Elapsed implements Sink.
func (s *safe) Elapsed(id types.ItemID, seconds int) {
	defer s.guard("elapsed")
	s.next.Elapsed(id, seconds)
}

// CheckFailed implements Sink.
func (s *safe) CheckFailed(id types.ItemID, err error) {
	defer s.guard("check_failed")
	s.next.CheckFailed(id, err)
}

// BumpPending implements Sink.
func (s *safe) BumpPending(id types.ItemID) {
	defer s.guard("bump_pending")
	s.next.BumpPending(id)
}

// BumpComplete implements Sink.
func (s *safe) BumpComplete(id types.ItemID) {
	defer s.guard("bump_complete")
	s.next.BumpComplete(id)
}
