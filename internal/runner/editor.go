package runner

import (
	"context"
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stubborncoder/vdocs/internal/agent"
	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/events"
)

// MaxImageBytes caps vision attachments.
const MaxImageBytes = 5 << 20

// Selection is a user text selection with character offsets into the
// document.
type Selection struct {
	Text        string
	StartOffset int
	EndOffset   int
}

// EditorInput is one SendMessage call.
type EditorInput struct {
	Text string

	Selection *Selection

	// DocumentContent, when non-nil, replaces the cached document as the
	// authoritative current state.
	DocumentContent *string

	// Image names a screenshot in the document's store to attach.
	Image string
}

// EditorRunner drives a conversational editing agent that streams tokens
// and proposes changes as PendingChange events.
type EditorRunner struct {
	userID string
	docID  string
	docs   *docstore.Store
	agent  agent.EditorAgent

	queueSize int

	mu          sync.Mutex
	started     bool
	threadID    string
	document    string
	seenChanges map[string]bool
}

// NewEditorRunner creates a runner for one document editing session.
func NewEditorRunner(userID, docID string, docs *docstore.Store, editorAgent agent.EditorAgent, queueSize int) *EditorRunner {
	return &EditorRunner{
		userID:      userID,
		docID:       docID,
		docs:        docs,
		agent:       editorAgent,
		queueSize:   queueSize,
		threadID:    uuid.NewString(),
		seenChanges: map[string]bool{},
	}
}

// Start initializes the session with the document content. Idempotent
// after the first call for the same runner instance.
func (r *EditorRunner) Start(ctx context.Context, documentContent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := r.agent.Start(ctx, r.threadID, documentContent); err != nil {
		return err
	}
	r.started = true
	r.document = documentContent
	return nil
}

// SendMessage runs one editing turn. The returned stream ends with Complete
// or Error; attachment problems produce Error(recoverable=true) without
// invoking the agent.
func (r *EditorRunner) SendMessage(ctx context.Context, input EditorInput) (*Stream, error) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil, vderrors.ProtocolError("editor session not started")
	}
	if input.DocumentContent != nil {
		r.document = *input.DocumentContent
	}
	document := r.document
	r.mu.Unlock()

	msg := agent.EditorMessage{Text: input.Text}
	if input.DocumentContent != nil {
		msg.Document = document
		msg.HasDocument = true
	}
	if input.Selection != nil {
		msg.SelectionText = input.Selection.Text
		msg.SelectionStartLine = offsetToLine(document, input.Selection.StartOffset)
		msg.SelectionEndLine = offsetToLine(document, input.Selection.EndOffset)
	}

	var attachErr error
	if input.Image != "" {
		data, mimeType, err := r.loadImage(input.Image)
		if err != nil {
			attachErr = err
		} else {
			msg.ImageData = data
			msg.ImageMIME = mimeType
		}
	}

	return startRun(ctx, r.queueSize, func(ctx context.Context, emit EmitFunc) {
		if attachErr != nil {
			emit(events.Error{ErrorMessage: attachErr.Error(), Recoverable: true, Timestamp: events.Now()})
			return
		}

		r.mu.Lock()
		seen := r.seenChanges
		r.mu.Unlock()

		bridge := newAgentBridge(emit, seen)
		err := r.agent.SendMessage(ctx, r.threadID, msg, bridge.handle)
		bridge.closeTokens()
		if err != nil {
			emit(events.Error{ErrorMessage: err.Error(), Recoverable: vderrors.IsRetryable(err), Timestamp: events.Now()})
			return
		}
		emit(events.Complete{Message: "editor turn complete", Timestamp: events.Now()})
	}), nil
}

// loadImage fetches a screenshot from the document store, enforcing the
// size cap, and base64-encodes it for vision input.
func (r *EditorRunner) loadImage(filename string) (string, string, error) {
	path := filepath.Join(r.docs.ScreenshotsDir(r.docID), filepath.Base(filename))
	st, err := os.Stat(path)
	if err != nil {
		return "", "", vderrors.NotFound("screenshot not found").
			WithContext("doc_id", r.docID).
			WithContext("image", filename)
	}
	if st.Size() > MaxImageBytes {
		return "", "", vderrors.ValidationError("image exceeds the attachment size limit").
			WithContext("image", filename).
			WithContext("size_bytes", st.Size()).
			WithContext("limit_bytes", int64(MaxImageBytes))
	}

	data, err := os.ReadFile(path) // #nosec G304 - constrained to the screenshots dir
	if err != nil {
		return "", "", vderrors.IOError("read screenshot", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return base64.StdEncoding.EncodeToString(data), mimeType, nil
}

// offsetToLine converts a character offset to a 1-based line number,
// clamping out-of-range offsets.
func offsetToLine(document string, offset int) int {
	if offset < 0 {
		offset = 0
	}
	if offset > len(document) {
		offset = len(document)
	}
	return 1 + strings.Count(document[:offset], "\n")
}
