package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/types"
)

// Sink forwards search events to a running Bubble Tea program.
type Sink struct {
	send func(tea.Msg)
}

// NewSink returns a Sink that sends to p.
func NewSink(p *tea.Program) *Sink {
	return &Sink{send: p.Send}
}

func (s *Sink) Question(id types.ItemID, text string) {
	s.send(questionMsg{id: id, text: text})
}

func (s *Sink) Progress(ev sink.ProgressEvent) {
	s.send(progressMsg(ev))
}

func (s *Sink) Offer(ev sink.OfferEvent) {
	s.send(offerMsg(ev))
}

func (s *Sink) Answer(ev sink.AnswerEvent) {
	s.send(answerMsg(ev))
}

func (s *Sink) Elapsed(id types.ItemID, seconds int) {
	s.send(elapsedMsg{id: id, seconds: seconds})
}

func (s *Sink) CheckFailed(id types.ItemID, err error) {
	s.send(checkFailedMsg{id: id, err: err})
}

func (s *Sink) BumpPending(id types.ItemID) {
	s.send(bumpPendingMsg{id: id})
}

func (s *Sink) BumpComplete(id types.ItemID) {
	s.send(bumpCompleteMsg{id: id})
}

var _ sink.Sink = (*Sink)(nil)
