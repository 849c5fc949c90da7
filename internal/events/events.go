// Package events defines the tagged progress events every runner emits and
// their JSON wire framing. Consumers dispatch on the variant type; adapters
// that cross a process boundary use Frame encoding.
package events

import (
	"encoding/json"
	"time"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// Event is one tagged progress event. Each variant carries the wall-clock
// time it was emitted.
type Event interface {
	EventType() string
	When() time.Time
}

// Event type tags as they appear on the wire.
const (
	TypeStageStarted          = "stage_started"
	TypeStageCompleted        = "stage_completed"
	TypeToken                 = "token"
	TypeToolCall              = "tool_call"
	TypePendingChange         = "pending_change"
	TypeHumanApprovalRequired = "human_approval_required"
	TypeError                 = "error"
	TypeComplete              = "complete"
)

// StageStarted is emitted before a pipeline stage begins.
type StageStarted struct {
	StageName string    `json:"stage_name"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"-"`
}

func (e StageStarted) EventType() string { return TypeStageStarted }
func (e StageStarted) When() time.Time   { return e.Timestamp }

// StageCompleted is emitted when a stage finishes successfully. Details is a
// stage-specific summary.
type StageCompleted struct {
	StageName string         `json:"stage_name"`
	Index     int            `json:"index"`
	Total     int            `json:"total"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"-"`
}

func (e StageCompleted) EventType() string { return TypeStageCompleted }
func (e StageCompleted) When() time.Time   { return e.Timestamp }

// Token is one delta from a streaming text generator. IsFirst and IsLast
// delimit one contiguous response.
type Token struct {
	Token     string    `json:"token"`
	IsFirst   bool      `json:"is_first"`
	IsLast    bool      `json:"is_last"`
	Timestamp time.Time `json:"-"`
}

func (e Token) EventType() string { return TypeToken }
func (e Token) When() time.Time   { return e.Timestamp }

// ToolCall is emitted when the agent commits a tool invocation.
type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	ToolID    string         `json:"tool_id"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Timestamp time.Time      `json:"-"`
}

func (e ToolCall) EventType() string { return TypeToolCall }
func (e ToolCall) When() time.Time   { return e.Timestamp }

// PendingChange is emitted when the agent proposes an editable change.
type PendingChange struct {
	ChangeID   string         `json:"change_id"`
	ChangeType string         `json:"change_type"`
	ChangeData map[string]any `json:"change_data,omitempty"`
	Timestamp  time.Time      `json:"-"`
}

func (e PendingChange) EventType() string { return TypePendingChange }
func (e PendingChange) When() time.Time   { return e.Timestamp }

// HumanApprovalRequired is emitted when execution pauses awaiting a
// decision.
type HumanApprovalRequired struct {
	InterruptID string         `json:"interrupt_id"`
	ToolName    string         `json:"tool_name"`
	ToolArgs    map[string]any `json:"tool_args,omitempty"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"-"`
}

func (e HumanApprovalRequired) EventType() string { return TypeHumanApprovalRequired }
func (e HumanApprovalRequired) When() time.Time   { return e.Timestamp }

// Error reports a terminal or recoverable failure.
type Error struct {
	ErrorMessage string    `json:"error_message"`
	StageName    string    `json:"stage_name,omitempty"`
	Recoverable  bool      `json:"recoverable"`
	Timestamp    time.Time `json:"-"`
}

func (e Error) EventType() string { return TypeError }
func (e Error) When() time.Time   { return e.Timestamp }

// Complete is the terminal success event.
type Complete struct {
	Result    map[string]any `json:"result,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"-"`
}

func (e Complete) EventType() string { return TypeComplete }
func (e Complete) When() time.Time   { return e.Timestamp }

// Now stamps the current wall-clock time, factored out so emit sites stay
// short.
func Now() time.Time { return time.Now().UTC() }

// frame is the wire shape: the timestamp travels as seconds-since-epoch.
type frame struct {
	EventType string          `json:"event_type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EncodeFrame renders an event as a JSON wire frame.
func EncodeFrame(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, vderrors.InternalError("marshal event data").WithContext("cause", err.Error())
	}
	ts := event.When()
	if ts.IsZero() {
		ts = Now()
	}
	return json.Marshal(frame{
		EventType: event.EventType(),
		Timestamp: float64(ts.UnixNano()) / float64(time.Second),
		Data:      data,
	})
}

// DecodeFrame parses a JSON wire frame back into its event variant.
func DecodeFrame(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, vderrors.ProtocolError("malformed event frame").WithContext("cause", err.Error())
	}

	ts := time.Unix(0, int64(f.Timestamp*float64(time.Second))).UTC()
	decode := func(target any) error {
		if len(f.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(f.Data, target); err != nil {
			return vderrors.ProtocolError("malformed event data").
				WithContext("event_type", f.EventType).
				WithContext("cause", err.Error())
		}
		return nil
	}

	switch f.EventType {
	case TypeStageStarted:
		var e StageStarted
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	case TypeStageCompleted:
		var e StageCompleted
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	case TypeToken:
		var e Token
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	case TypeToolCall:
		var e ToolCall
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	case TypePendingChange:
		var e PendingChange
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	case TypeHumanApprovalRequired:
		var e HumanApprovalRequired
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	case TypeError:
		var e Error
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	case TypeComplete:
		var e Complete
		if err := decode(&e); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		return e, nil
	default:
		return nil, vderrors.ProtocolError("unknown event type").WithContext("event_type", f.EventType)
	}
}

// IsTerminal reports whether the event ends a logical invocation.
func IsTerminal(event Event) bool {
	switch e := event.(type) {
	case Complete:
		return true
	case Error:
		return !e.Recoverable
	default:
		return false
	}
}
