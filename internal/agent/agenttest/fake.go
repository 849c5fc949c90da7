// Package agenttest provides scripted in-memory agents for tests.
package agenttest

import (
	"context"

	"github.com/stubborncoder/vdocs/internal/agent"
)

// Analyzer is a scripted agent.VideoAnalyzer.
type Analyzer struct {
	Analysis  *agent.VideoAnalysis
	Keyframes []agent.Keyframe
	Docs      map[string]string

	AnalyzeErr   error
	KeyframesErr error
	GenerateErr  error

	Calls []string
}

func (a *Analyzer) Analyze(_ context.Context, videoPath string) (*agent.VideoAnalysis, error) {
	a.Calls = append(a.Calls, "analyze:"+videoPath)
	if a.AnalyzeErr != nil {
		return nil, a.AnalyzeErr
	}
	if a.Analysis != nil {
		return a.Analysis, nil
	}
	return &agent.VideoAnalysis{Summary: "a video", DurationSeconds: 60}, nil
}

func (a *Analyzer) IdentifyKeyframes(_ context.Context, videoPath string, _ *agent.VideoAnalysis) ([]agent.Keyframe, error) {
	a.Calls = append(a.Calls, "keyframes:"+videoPath)
	if a.KeyframesErr != nil {
		return nil, a.KeyframesErr
	}
	return a.Keyframes, nil
}

func (a *Analyzer) Generate(_ context.Context, req agent.GenerateRequest) (map[string]string, error) {
	a.Calls = append(a.Calls, "generate")
	if a.GenerateErr != nil {
		return nil, a.GenerateErr
	}
	if a.Docs != nil {
		return a.Docs, nil
	}
	docs := map[string]string{}
	for _, lang := range req.Languages {
		docs[lang] = "# Generated (" + lang + ")\n"
	}
	return docs, nil
}

// Compiler is a scripted agent.CompilerAgent. Plan pauses with
// PlanInterrupt; Resume with approval completes, rejection pauses again
// with RevisedInterrupt (or PlanInterrupt when unset).
type Compiler struct {
	PlanTokens       []string
	PlanInterrupt    *agent.Interrupt
	RevisedInterrupt *agent.Interrupt
	ResumeTokens     []string

	Decisions []agent.Decision
	Messages  []string
}

func emitTokens(tokens []string, emit agent.EmitFunc) {
	for _, token := range tokens {
		emit(agent.StreamEvent{Kind: agent.KindToken, Token: token})
	}
}

func (c *Compiler) Plan(_ context.Context, _ string, _ string, emit agent.EmitFunc) (*agent.Interrupt, error) {
	emitTokens(c.PlanTokens, emit)
	return c.PlanInterrupt, nil
}

func (c *Compiler) Resume(_ context.Context, _ string, decision agent.Decision, emit agent.EmitFunc) (*agent.Interrupt, error) {
	c.Decisions = append(c.Decisions, decision)
	emitTokens(c.ResumeTokens, emit)
	if decision.Approved {
		return nil, nil
	}
	if c.RevisedInterrupt != nil {
		return c.RevisedInterrupt, nil
	}
	return c.PlanInterrupt, nil
}

func (c *Compiler) SendMessage(_ context.Context, _ string, text string, emit agent.EmitFunc) (*agent.Interrupt, error) {
	c.Messages = append(c.Messages, text)
	emit(agent.StreamEvent{Kind: agent.KindToken, Token: "ack: " + text})
	return nil, nil
}

// Editor is a scripted agent.EditorAgent replaying Script on each message.
type Editor struct {
	Script []agent.StreamEvent

	Started   bool
	StartDoc  string
	Messages  []agent.EditorMessage
	ThreadIDs []string
}

func (e *Editor) Start(_ context.Context, threadID, documentContent string) error {
	if e.Started {
		return nil
	}
	e.Started = true
	e.StartDoc = documentContent
	e.ThreadIDs = append(e.ThreadIDs, threadID)
	return nil
}

func (e *Editor) SendMessage(_ context.Context, threadID string, msg agent.EditorMessage, emit agent.EmitFunc) error {
	e.Messages = append(e.Messages, msg)
	e.ThreadIDs = append(e.ThreadIDs, threadID)
	for _, event := range e.Script {
		emit(event)
	}
	return nil
}
