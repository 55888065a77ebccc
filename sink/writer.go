package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/st-keller/jimmy-client/types"
)

// Writer renders events as plain text lines, one per event.
// Elapsed ticks are skipped unless Verbose is set.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	Verbose bool
}

// NewWriter returns a Writer sink printing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format+"\n", args...)
}

// Question implements Sink.
func (s *Writer) Question(id types.ItemID, text string) {
	s.printf("[%s] question: %s", id, text)
}

// Progress implements Sink.
func (s *Writer) Progress(ev ProgressEvent) {
	s.printf("[%s] waiting: position %d, next check in %s", ev.ID, ev.Position, ev.NextCheck)
}

// Offer implements Sink. A failed payment with no known position prints a
// retry hint instead of the queue position.
func (s *Writer) Offer(ev OfferEvent) {
	if ev.BumpError && ev.Position < 0 {
		s.printf("[%s] payment failed; try `jimmy bump %s` again", ev.ID, ev.ID)
		return
	}
	if ev.BumpError {
		s.printf("[%s] payment failed; you can still move your search to the top of the queue (position %d)", ev.ID, ev.Position)
		return
	}
	s.printf("[%s] your search is deep in the queue (position %d); run `jimmy bump %s --token <token>` to move it to the top", ev.ID, ev.Position, ev.ID)
}

// Answer implements Sink.
func (s *Writer) Answer(ev AnswerEvent) {
	s.printf("[%s] answer: %s", ev.ID, ev.Answer)
	for _, link := range ev.Links {
		s.printf("[%s]   %s <%s>", ev.ID, link.Title, link.URL)
	}
}

// Elapsed implements Sink.
func (s *Writer) Elapsed(id types.ItemID, seconds int) {
	if s.Verbose {
		s.printf("[%s] %ds elapsed", id, seconds)
	}
}

// CheckFailed implements Sink.
func (s *Writer) CheckFailed(id types.ItemID, err error) {
	s.printf("[%s] status check failed: %v (polling stopped; search again to retry)", id, err)
}

// BumpPending implements Sink.
func (s *Writer) BumpPending(id types.ItemID) {
	s.printf("[%s] payment processing...", id)
}

// BumpComplete implements Sink.
func (s *Writer) BumpComplete(id types.ItemID) {
	s.printf("[%s] payment complete; your search moved to the top of the queue", id)
}

var _ Sink = (*Writer)(nil)
