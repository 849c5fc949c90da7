package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/events"
)

func applyEvents(m Model, evs ...events.Event) Model {
	for _, event := range evs {
		next, _ := m.Update(eventMsg{event: event})
		m = next.(Model)
	}
	return m
}

func TestView_StageProgress(t *testing.T) {
	m := New("processing install.mp4", nil)

	m = applyEvents(m,
		events.StageStarted{StageName: "analyze", Index: 0, Total: 3},
		events.StageCompleted{StageName: "analyze", Index: 0, Total: 3},
		events.StageStarted{StageName: "identify_keyframes", Index: 1, Total: 3},
	)

	view := m.View()
	assert.Contains(t, view, "processing install.mp4")
	assert.Contains(t, view, "analyze")
	assert.Contains(t, view, "identify_keyframes")
	assert.Contains(t, view, "(2/3)")
}

func TestView_TokensAndApproval(t *testing.T) {
	m := New("compiling", nil)

	m = applyEvents(m,
		events.Token{Token: "merge plan ready", IsFirst: true, IsLast: true},
		events.HumanApprovalRequired{Message: "approve the compilation plan"},
	)

	view := m.View()
	assert.Contains(t, view, "merge plan ready")
	assert.Contains(t, view, "approval required: approve the compilation plan")
}

func TestView_CompleteClearsPending(t *testing.T) {
	m := New("compiling", nil)

	m = applyEvents(m,
		events.HumanApprovalRequired{Message: "approve"},
		events.Complete{Result: map[string]any{"doc_id": "install"}},
	)

	view := m.View()
	assert.NotContains(t, view, "approval required")
	assert.Contains(t, view, "complete")
	assert.Contains(t, view, "install")
}

func TestView_ErrorMarksFailed(t *testing.T) {
	m := New("processing", nil)
	m = applyEvents(m, events.Error{ErrorMessage: "ffmpeg not found"})

	assert.True(t, m.Failed())
	assert.Contains(t, m.View(), "ffmpeg not found")
}

func TestTokenTailIsBounded(t *testing.T) {
	m := New("editing", nil)
	long := strings.Repeat("x", 3*tokenTailLimit)
	m = applyEvents(m, events.Token{Token: long})

	require.LessOrEqual(t, len(m.tokens), tokenTailLimit)
}

func TestStreamClosedQuits(t *testing.T) {
	m := New("processing", nil)
	_, cmd := m.Update(streamClosedMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
