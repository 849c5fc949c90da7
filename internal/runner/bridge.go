package runner

import (
	"github.com/stubborncoder/vdocs/internal/agent"
	"github.com/stubborncoder/vdocs/internal/events"
)

// mutationTools are the text-mutation tools whose results become
// PendingChange events.
var mutationTools = map[string]bool{
	"replace_text":         true,
	"insert_text":          true,
	"delete_text":          true,
	"update_image_caption": true,
}

// agentBridge converts synchronous agent stream events into progress
// events. It tracks token boundaries so is_first/is_last delimit one
// contiguous response, and dedupes change ids when enabled (the same change
// can arrive via two streaming modes).
type agentBridge struct {
	emit        EmitFunc
	tokenOpen   bool
	seenChanges map[string]bool
}

// newAgentBridge wires emit to an optional change-id dedup set. The set is
// owned by the caller so dedup spans turns; nil disables PendingChange
// extraction.
func newAgentBridge(emit EmitFunc, seenChanges map[string]bool) *agentBridge {
	return &agentBridge{emit: emit, seenChanges: seenChanges}
}

func (b *agentBridge) handle(ev agent.StreamEvent) {
	switch ev.Kind {
	case agent.KindToken:
		b.emit(events.Token{Token: ev.Token, IsFirst: !b.tokenOpen, Timestamp: events.Now()})
		b.tokenOpen = true
	case agent.KindToolCall:
		b.closeTokens()
		b.emit(events.ToolCall{
			ToolName:  ev.ToolName,
			ToolID:    ev.ToolID,
			Arguments: ev.Arguments,
			Timestamp: events.Now(),
		})
	case agent.KindToolResult:
		b.closeTokens()
		if b.seenChanges == nil || !mutationTools[ev.ResultToolName] {
			return
		}
		changeID, _ := ev.Result["change_id"].(string)
		if changeID == "" || b.seenChanges[changeID] {
			return
		}
		b.seenChanges[changeID] = true
		b.emit(events.PendingChange{
			ChangeID:   changeID,
			ChangeType: ev.ResultToolName,
			ChangeData: ev.Result,
			Timestamp:  events.Now(),
		})
	}
}

// closeTokens emits the is_last delimiter when a token run is open.
func (b *agentBridge) closeTokens() {
	if b.tokenOpen {
		b.emit(events.Token{IsLast: true, Timestamp: events.Now()})
		b.tokenOpen = false
	}
}
