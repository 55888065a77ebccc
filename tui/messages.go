package tui

import (
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/types"
)

// LoadingMessages are shown while a search waits in the queue.
var LoadingMessages = []string{
	"Don't worry, Jimmy is a certified search engine. Your results will appear here when he finishes them.",
	"Jimmy might be sleeping on the job... but we're sure he'll get to your question when someone wakes him up.",
	"Jimmy's working up a sweat answering questions. He will get to yours soon!",
}

// RandomLoadingMessage picks one of LoadingMessages.
func RandomLoadingMessage() string {
	return LoadingMessages[rand.Intn(len(LoadingMessages))]
}

// Messages delivered to the model by Sink.

type questionMsg struct {
	id   types.ItemID
	text string
}

type progressMsg sink.ProgressEvent

type offerMsg sink.OfferEvent

type answerMsg sink.AnswerEvent

type elapsedMsg struct {
	id      types.ItemID
	seconds int
}

type checkFailedMsg struct {
	id  types.ItemID
	err error
}

type bumpPendingMsg struct{ id types.ItemID }

type bumpCompleteMsg struct{ id types.ItemID }

// bumpResultMsg reports the outcome of a bump started from the keyboard.
type bumpResultMsg struct{ err error }

// BumpFunc charges for id. It runs as a tea.Cmd, off the update loop.
type BumpFunc func(id types.ItemID) error

func bumpCmd(fn BumpFunc, id types.ItemID) tea.Cmd {
	return func() tea.Msg {
		return bumpResultMsg{err: fn(id)}
	}
}

// quitAfter closes the program a moment after the answer is shown.
func quitAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return tea.Quit() })
}
