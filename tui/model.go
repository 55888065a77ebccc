// Package tui is the Bubble Tea waiting room shown while a search is queued.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/st-keller/jimmy-client/types"
)

// AnswerLinger is how long the answer stays on screen before the program exits.
const AnswerLinger = 3 * time.Second

type bumpState int

const (
	bumpNone bumpState = iota
	bumpProcessing
	bumpComplete
)

// Model renders one tracked question.
type Model struct {
	id       types.ItemID
	question string
	message  string

	position  int
	nextCheck time.Duration
	elapsed   int

	offerShown bool
	bumpError  bool
	bump       bumpState
	bumpFn     BumpFunc

	answered bool
	answer   string
	links    []types.Link
	notFound bool
	failure  error

	exitOnAnswer bool
	width        int
	quitting     bool
}

// Option configures a Model.
type Option func(*Model)

// WithBump enables the "b" key while the offer is visible.
func WithBump(fn BumpFunc) Option {
	return func(m *Model) { m.bumpFn = fn }
}

// WithExitOnAnswer closes the program AnswerLinger after the answer arrives.
func WithExitOnAnswer() Option {
	return func(m *Model) { m.exitOnAnswer = true }
}

// WithMessage fixes the loading message instead of picking one at random.
func WithMessage(msg string) Option {
	return func(m *Model) { m.message = msg }
}

// NewModel creates the waiting room for id.
func NewModel(id types.ItemID, opts ...Option) Model {
	m := Model{
		id:       id,
		question: "...",
		position: -1,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.message == "" {
		m.message = RandomLoadingMessage()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case questionMsg:
		if msg.id == m.id {
			m.question = msg.text
		}
		return m, nil

	case progressMsg:
		if msg.ID != m.id {
			return m, nil
		}
		m.position = msg.Position
		m.nextCheck = msg.NextCheck
		m.failure = nil
		return m, nil

	case offerMsg:
		if msg.ID != m.id || m.answered {
			return m, nil
		}
		m.offerShown = true
		m.bumpError = msg.BumpError
		if msg.BumpError {
			m.bump = bumpNone
		}
		if msg.Position >= 0 {
			m.position = msg.Position
		}
		return m, nil

	case answerMsg:
		if msg.ID != m.id {
			return m, nil
		}
		m.answered = true
		m.answer = msg.Answer
		m.links = msg.Links
		m.notFound = msg.NotFound
		m.offerShown = false
		if m.exitOnAnswer {
			return m, quitAfter(AnswerLinger)
		}
		return m, nil

	case elapsedMsg:
		if msg.id == m.id {
			m.elapsed = msg.seconds
		}
		return m, nil

	case checkFailedMsg:
		if msg.id == m.id {
			m.failure = msg.err
		}
		return m, nil

	case bumpPendingMsg:
		if msg.id == m.id {
			m.bump = bumpProcessing
			m.bumpError = false
		}
		return m, nil

	case bumpCompleteMsg:
		if msg.id == m.id {
			m.bump = bumpComplete
		}
		return m, nil

	case bumpResultMsg:
		// the re-rendered offer may never come if the follow-up check fails
		if msg.err != nil && m.bump == bumpProcessing {
			m.bump = bumpNone
			m.bumpError = true
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "b":
		if m.bumpFn != nil && m.offerShown && m.bump != bumpProcessing && m.bump != bumpComplete && !m.answered {
			m.bump = bumpProcessing
			return m, bumpCmd(m.bumpFn, m.id)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Jimmy · search %s", m.id)))
	b.WriteString("\n")
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n")

	if m.answered {
		b.WriteString(m.renderAnswer())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q: quit"))
		return b.String()
	}

	b.WriteString(waitingStyle.Render(m.message))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n")

	if m.failure != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Status check failed: %v. Search again to retry.", m.failure)))
		b.WriteString("\n")
	}

	if m.offerShown {
		b.WriteString(m.renderOffer())
		b.WriteString("\n")
	}

	help := "q: quit"
	if m.bumpFn != nil && m.offerShown && m.bump == bumpNone {
		help = "b: move to top of queue · " + help
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) statusLine() string {
	parts := []string{fmt.Sprintf("%ds elapsed", m.elapsed)}
	if m.position >= 0 {
		parts = append(parts, fmt.Sprintf("position %d", m.position))
	}
	if m.nextCheck > 0 {
		parts = append(parts, fmt.Sprintf("next check in %s", m.nextCheck))
	}
	return strings.Join(parts, " · ")
}

func (m Model) renderOffer() string {
	switch m.bump {
	case bumpProcessing:
		return offerStyle.Render("Payment processing...")
	case bumpComplete:
		return offerStyle.Render(successStyle.Render("Payment complete! Your search is now at the top of the queue."))
	}

	var text string
	if m.position >= 0 {
		text = fmt.Sprintf("Your search is at position %d in the queue.\nMove your search to the top of the queue.", m.position)
	} else {
		text = "Move your search to the top of the queue."
	}
	if m.bumpError {
		return offerErrorStyle.Render(errorStyle.Render("Your payment did not go through.") + "\n" + text)
	}
	return offerStyle.Render(text)
}

func (m Model) renderAnswer() string {
	style := answerStyle
	if m.notFound {
		style = notFoundStyle
	}

	var b strings.Builder
	b.WriteString(m.answer)
	for _, link := range m.links {
		b.WriteString("\n\n")
		b.WriteString(linkTitleStyle.Render(link.Title))
		b.WriteString("\n")
		b.WriteString(linkURLStyle.Render(link.URL))
		if link.Snippet != "" {
			b.WriteString("\n")
			b.WriteString(statusStyle.Render(link.Snippet))
		}
	}

	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(b.String())
}
