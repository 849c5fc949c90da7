package runner

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stubborncoder/vdocs/internal/agent"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/events"
)

// CompilerState is the HITL state of a compiler runner.
type CompilerState int

const (
	StateIdle CompilerState = iota
	StateStreaming
	StateAwaitingDecision
)

func (s CompilerState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateAwaitingDecision:
		return "awaiting_decision"
	default:
		return "idle"
	}
}

// CompileFunc executes the approved compilation with the (possibly edited)
// tool arguments and returns the result mapping for the Complete event.
type CompileFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// CompilerRunner drives a goal-directed planning agent that pauses for
// approval before executing. One runner instance holds one agent thread, so
// resumes and follow-ups operate on the same conversational state.
type CompilerRunner struct {
	userID    string
	projectID string
	agent     agent.CompilerAgent
	compile   CompileFunc
	queueSize int

	mu       sync.Mutex
	state    CompilerState
	threadID string
	pending  *agent.Interrupt
}

// NewCompilerRunner creates an idle runner. compile may be nil, in which
// case approval completes without executing anything.
func NewCompilerRunner(userID, projectID string, compilerAgent agent.CompilerAgent, compile CompileFunc, queueSize int) *CompilerRunner {
	return &CompilerRunner{
		userID:    userID,
		projectID: projectID,
		agent:     compilerAgent,
		compile:   compile,
		queueSize: queueSize,
		threadID:  uuid.NewString(),
	}
}

// State reports the current HITL state.
func (r *CompilerRunner) State() CompilerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *CompilerRunner) transition(from, to CompilerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != from {
		return vderrors.ProtocolError("invalid runner state for this operation").
			WithContext("state", r.state.String()).
			WithContext("expected", from.String())
	}
	r.state = to
	return nil
}

func (r *CompilerRunner) setState(to CompilerState) {
	r.mu.Lock()
	r.state = to
	r.mu.Unlock()
}

// afterTurn routes the outcome of an agent turn: an interrupt pauses for a
// decision, otherwise the invocation completes.
func (r *CompilerRunner) afterTurn(interrupt *agent.Interrupt, result map[string]any, emit EmitFunc) {
	if interrupt != nil {
		r.mu.Lock()
		r.pending = interrupt
		r.state = StateAwaitingDecision
		r.mu.Unlock()
		emit(events.HumanApprovalRequired{
			InterruptID: interrupt.ID,
			ToolName:    interrupt.ToolName,
			ToolArgs:    interrupt.ToolArgs,
			Message:     interrupt.Message,
			Timestamp:   events.Now(),
		})
		return
	}
	r.setState(StateIdle)
	emit(events.Complete{Result: result, Message: "compilation turn complete", Timestamp: events.Now()})
}

func (r *CompilerRunner) failTurn(err error, emit EmitFunc) {
	r.setState(StateIdle)
	emit(events.Error{ErrorMessage: err.Error(), Recoverable: vderrors.IsRetryable(err), Timestamp: events.Now()})
}

// Run starts a planning turn. Only valid from IDLE.
func (r *CompilerRunner) Run(ctx context.Context, goal string) (*Stream, error) {
	if err := r.transition(StateIdle, StateStreaming); err != nil {
		return nil, err
	}
	return startRun(ctx, r.queueSize, func(ctx context.Context, emit EmitFunc) {
		bridge := newAgentBridge(emit, nil)
		interrupt, err := r.agent.Plan(ctx, r.threadID, goal, bridge.handle)
		bridge.closeTokens()
		if err != nil {
			r.failTurn(err, emit)
			return
		}
		r.afterTurn(interrupt, nil, emit)
	}), nil
}

// Resume answers the pending interrupt. Approval (optionally with edited
// arguments) executes the compilation; rejection feeds the feedback back to
// the agent, which typically pauses again with a revised plan.
func (r *CompilerRunner) Resume(ctx context.Context, decision agent.Decision) (*Stream, error) {
	if err := r.transition(StateAwaitingDecision, StateStreaming); err != nil {
		return nil, err
	}
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	return startRun(ctx, r.queueSize, func(ctx context.Context, emit EmitFunc) {
		bridge := newAgentBridge(emit, nil)

		var result map[string]any
		if decision.Approved && r.compile != nil {
			args := map[string]any{}
			if pending != nil {
				for k, v := range pending.ToolArgs {
					args[k] = v
				}
			}
			for k, v := range decision.ModifiedArgs {
				args[k] = v
			}
			compiled, err := r.compile(ctx, args)
			if err != nil {
				r.failTurn(err, emit)
				return
			}
			result = compiled
		}

		interrupt, err := r.agent.Resume(ctx, r.threadID, decision, bridge.handle)
		bridge.closeTokens()
		if err != nil {
			r.failTurn(err, emit)
			return
		}
		r.afterTurn(interrupt, result, emit)
	}), nil
}

// SendMessage sends a free-form follow-up between turns. It is a protocol
// error while a decision is pending or a turn is streaming.
func (r *CompilerRunner) SendMessage(ctx context.Context, text string) (*Stream, error) {
	r.mu.Lock()
	switch r.state {
	case StateAwaitingDecision:
		r.mu.Unlock()
		return nil, vderrors.ProtocolError("a decision is pending; resume before sending messages")
	case StateStreaming:
		r.mu.Unlock()
		return nil, vderrors.ProtocolError("a turn is already streaming")
	}
	r.state = StateStreaming
	r.mu.Unlock()

	return startRun(ctx, r.queueSize, func(ctx context.Context, emit EmitFunc) {
		bridge := newAgentBridge(emit, nil)
		interrupt, err := r.agent.SendMessage(ctx, r.threadID, text, bridge.handle)
		bridge.closeTokens()
		if err != nil {
			r.failTurn(err, emit)
			return
		}
		r.afterTurn(interrupt, nil, emit)
	}), nil
}
