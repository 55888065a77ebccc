package sink

import (
	"sync"

	"github.com/st-keller/jimmy-client/types"
)

// Recorder keeps every event it receives. Useful in tests and for headless
// callers that inspect the outcome after the fact.
type Recorder struct {
	mu        sync.Mutex
	questions map[types.ItemID]string
	progress  []ProgressEvent
	offers    []OfferEvent
	answers   []AnswerEvent
	failures  []error
	ticks     int
	bumps     []string

	answered chan struct{}
	once     sync.Once
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		questions: make(map[types.ItemID]string),
		answered:  make(chan struct{}),
	}
}

// Question implements Sink.
func (r *Recorder) Question(id types.ItemID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions[id] = text
}

// Progress implements Sink.
func (r *Recorder) Progress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, ev)
}

// Offer implements Sink.
func (r *Recorder) Offer(ev OfferEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, ev)
}

// Answer implements Sink.
func (r *Recorder) Answer(ev AnswerEvent) {
	r.mu.Lock()
	r.answers = append(r.answers, ev)
	r.mu.Unlock()
	r.once.Do(func() { close(r.answered) })
}

// Elapsed implements Sink.
func (r *Recorder) Elapsed(types.ItemID, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

// CheckFailed implements Sink.
func (r *Recorder) CheckFailed(_ types.ItemID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

// BumpPending implements Sink.
func (r *Recorder) BumpPending(types.ItemID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bumps = append(r.bumps, "pending")
}

// BumpComplete implements Sink.
func (r *Recorder) BumpComplete(types.ItemID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bumps = append(r.bumps, "complete")
}

// Answered is closed after the first Answer event.
func (r *Recorder) Answered() <-chan struct{} {
	return r.answered
}

// QuestionText returns the question text shown for id.
func (r *Recorder) QuestionText(id types.ItemID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text, ok := r.questions[id]
	return text, ok
}

// ProgressEvents returns a copy of the recorded progress events.
func (r *Recorder) ProgressEvents() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.progress...)
}

// OfferEvents returns a copy of the recorded offer events.
func (r *Recorder) OfferEvents() []OfferEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OfferEvent(nil), r.offers...)
}

// AnswerEvents returns a copy of the recorded answers.
func (r *Recorder) AnswerEvents() []AnswerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AnswerEvent(nil), r.answers...)
}

// Failures returns a copy of the recorded check failures.
func (r *Recorder) Failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.failures...)
}

// Ticks returns how many elapsed ticks were received.
func (r *Recorder) Ticks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

// Bumps returns the bump states received, in order.
func (r *Recorder) Bumps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bumps...)
}

var _ Sink = (*Recorder)(nil)
