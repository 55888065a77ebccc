// Package sink defines the presentation contract that receives search events.
//
// A Sink renders; it never drives polling. Implementations must not block for
// long since callbacks run on the scheduler's delivery path.
package sink

import (
	"time"

	"github.com/st-keller/jimmy-client/types"
)

// Not-found texts shown when a question id cannot be resolved.
const (
	QuestionPlaceholder = "Uh oh..."
	NotFoundAnswer      = "Sadly, Jimmy couldn't find your question. Try refreshing the page or asking another one!"
)

// AnswerEvent is the terminal event for a tracked item.
type AnswerEvent struct {
	ID     types.ItemID
	Answer string
	Links  []types.Link
	// NotFound marks the fallback answer for an unknown question id.
	NotFound bool
}

// ProgressEvent reports a not-ready status check.
type ProgressEvent struct {
	ID        types.ItemID
	Position  int
	NextCheck time.Duration
	BumpError bool
}

// OfferEvent asks the presentation layer to (re-)render the escalation offer.
type OfferEvent struct {
	ID        types.ItemID
	Position  int
	BumpError bool
}

// Sink receives search events.
type Sink interface {
	Question(id types.ItemID, text string)
	Progress(ev ProgressEvent)
	Offer(ev OfferEvent)
	Answer(ev AnswerEvent)
	Elapsed(id types.ItemID, seconds int)
	CheckFailed(id types.ItemID, err error)
	BumpPending(id types.ItemID)
	BumpComplete(id types.ItemID)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Question(types.ItemID, string) {}
func (Nop) Progress(ProgressEvent) {}
func (Nop) Offer(OfferEvent) {}
func (Nop) Answer(AnswerEvent) {}
func (Nop) Elapsed(types.ItemID, int) {}
func (Nop) CheckFailed(types.ItemID, error) {}
func (Nop) BumpPending(types.ItemID) {}
func (Nop) BumpComplete(types.ItemID) {}

var _ Sink = Nop{}
