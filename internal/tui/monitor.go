// Package tui renders a live run monitor in the terminal. The model
// consumes a runner stream and shows stage progress, streamed tokens, and
// pending approval prompts as they arrive.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/runner"
)

// Styles holds the lipgloss styles the monitor renders with.
type Styles struct {
	Title   lipgloss.Style
	Stage   lipgloss.Style
	Done    lipgloss.Style
	Active  lipgloss.Style
	Token   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
}

// DefaultStyles returns the standard color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Stage:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Done:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		Token:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Help:    lipgloss.NewStyle().Faint(true),
	}
}

// tokenTailLimit bounds how much streamed text the view keeps.
const tokenTailLimit = 2000

type stageLine struct {
	name  string
	index int
	total int
	done  bool
}

type eventMsg struct{ event events.Event }

type streamClosedMsg struct{}

// Model is the bubbletea model for one run.
type Model struct {
	title  string
	stream *runner.Stream
	styles Styles

	stages   []stageLine
	tokens   string
	pending  *events.HumanApprovalRequired
	errText  string
	result   map[string]any
	finished bool
	width    int
}

// New creates a monitor for one stream.
func New(title string, stream *runner.Stream) Model {
	return Model{title: title, stream: stream, styles: DefaultStyles()}
}

// Failed reports whether the run ended with a terminal error. The CLI uses
// it to pick the exit code after the program quits.
func (m Model) Failed() bool { return m.errText != "" }

func (m Model) waitForEvent() tea.Msg {
	event, ok := <-m.stream.Events()
	if !ok {
		return streamClosedMsg{}
	}
	return eventMsg{event: event}
}

// Init starts consuming the stream.
func (m Model) Init() tea.Cmd {
	return m.waitForEvent
}

// Update handles stream events and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.stream.Cancel()
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		m = m.apply(msg.event)
		return m, m.waitForEvent

	case streamClosedMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

// apply folds one event into the view state.
func (m Model) apply(event events.Event) Model {
	switch e := event.(type) {
	case events.StageStarted:
		m.stages = append(m.stages, stageLine{name: e.StageName, index: e.Index, total: e.Total})
	case events.StageCompleted:
		for i := range m.stages {
			if m.stages[i].name == e.StageName {
				m.stages[i].done = true
			}
		}
	case events.Token:
		m.tokens += e.Token
		if len(m.tokens) > tokenTailLimit {
			m.tokens = m.tokens[len(m.tokens)-tokenTailLimit:]
		}
	case events.HumanApprovalRequired:
		pending := e
		m.pending = &pending
	case events.Error:
		m.errText = e.ErrorMessage
	case events.Complete:
		m.result = e.Result
		m.pending = nil
	}
	return m
}

// View renders the monitor.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n\n")

	for _, stage := range m.stages {
		marker := m.styles.Active.Render("▸")
		style := m.styles.Active
		if stage.done {
			marker = m.styles.Done.Render("✓")
			style = m.styles.Stage
		}
		b.WriteString(fmt.Sprintf("  %s %s (%d/%d)\n",
			marker, style.Render(stage.name), stage.index+1, stage.total))
	}

	if m.tokens != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Token.Render(m.tokens))
		b.WriteString("\n")
	}

	if m.pending != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Warning.Render("⏸ approval required: " + m.pending.Message))
		b.WriteString("\n")
	}

	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("✗ " + m.errText))
		b.WriteString("\n")
	}

	if m.result != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Done.Render("✓ complete"))
		if docID, ok := m.result["doc_id"].(string); ok {
			b.WriteString(m.styles.Stage.Render(" → " + docID))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("q/ctrl+c to cancel"))
	return b.String()
}
