// Package agent defines the contracts for the LLM-backed collaborators the
// runners drive: video analysis, compilation planning, and interactive
// editing. The stages treat these as opaque functions with declared inputs
// and outputs; the only production implementation talks to Google GenAI.
package agent

import "context"

// VideoAnalysis is the output of the analyze stage.
type VideoAnalysis struct {
	Summary         string   `json:"summary"`
	DurationSeconds float64  `json:"duration_seconds"`
	Topics          []string `json:"topics,omitempty"`
	Language        string   `json:"language,omitempty"`
}

// Keyframe is one moment worth capturing as a screenshot.
type Keyframe struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Filename         string  `json:"filename"`
	Caption          string  `json:"caption,omitempty"`
}

// GenerateRequest carries everything the generate stage needs.
type GenerateRequest struct {
	VideoPath string
	Analysis  *VideoAnalysis
	Keyframes []Keyframe
	Languages []string
}

// VideoAnalyzer turns a video into per-language markdown documentation.
type VideoAnalyzer interface {
	Analyze(ctx context.Context, videoPath string) (*VideoAnalysis, error)
	IdentifyKeyframes(ctx context.Context, videoPath string, analysis *VideoAnalysis) ([]Keyframe, error)
	Generate(ctx context.Context, req GenerateRequest) (map[string]string, error)
}

// StreamEventKind tags one event yielded by a streaming agent.
type StreamEventKind int

const (
	KindToken StreamEventKind = iota
	KindToolCall
	KindToolResult
)

// StreamEvent is one synchronous delta from a streaming agent turn. Exactly
// the fields for its kind are set.
type StreamEvent struct {
	Kind StreamEventKind

	// KindToken
	Token string

	// KindToolCall
	ToolName  string
	ToolID    string
	Arguments map[string]any

	// KindToolResult
	ResultToolName string
	Result         map[string]any
}

// EmitFunc receives stream events on the agent's calling goroutine.
type EmitFunc func(StreamEvent)

// Interrupt is a pause point: the agent wants human approval before
// executing a tool.
type Interrupt struct {
	ID       string
	ToolName string
	ToolArgs map[string]any
	Message  string
}

// Decision answers an interrupt.
type Decision struct {
	Approved     bool           `json:"approved"`
	ModifiedArgs map[string]any `json:"modified_args,omitempty"`
	Feedback     string         `json:"feedback,omitempty"`
}

// CompilerAgent plans and executes compilations conversationally. A nil
// returned Interrupt means the turn ran to completion. All calls for one
// runner instance share a thread id so state accumulates.
type CompilerAgent interface {
	Plan(ctx context.Context, threadID, goal string, emit EmitFunc) (*Interrupt, error)
	Resume(ctx context.Context, threadID string, decision Decision, emit EmitFunc) (*Interrupt, error)
	SendMessage(ctx context.Context, threadID, text string, emit EmitFunc) (*Interrupt, error)
}

// EditorMessage is one user turn of an editing session.
type EditorMessage struct {
	Text string

	// Selection, when present, is described by text plus 1-based line
	// bounds already converted from character offsets.
	SelectionText      string
	SelectionStartLine int
	SelectionEndLine   int

	// Document, when non-empty, replaces the cached content as the
	// authoritative state.
	Document    string
	HasDocument bool

	// ImageData is a base64-encoded vision attachment.
	ImageData string
	ImageMIME string
}

// EditorAgent streams tokens and tool results for interactive document
// editing.
type EditorAgent interface {
	Start(ctx context.Context, threadID, documentContent string) error
	SendMessage(ctx context.Context, threadID string, msg EditorMessage, emit EmitFunc) error
}
