package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"golang.org/x/net/websocket"

	"github.com/stubborncoder/vdocs/internal/agent"
	"github.com/stubborncoder/vdocs/internal/compile"
	"github.com/stubborncoder/vdocs/internal/compilestore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/logfields"
	"github.com/stubborncoder/vdocs/internal/projectstore"
	"github.com/stubborncoder/vdocs/internal/runner"
)

// Client actions on the /api/runs socket. The first frame selects the run
// flavor; decision/message/cancel frames steer it afterwards.
const (
	actionProcess  = "process"
	actionCompile  = "compile"
	actionEdit     = "edit"
	actionDecision = "decision"
	actionMessage  = "message"
	actionCancel   = "cancel"
)

// clientFrame is one inbound JSON message from the socket.
type clientFrame struct {
	Action string `json:"action"`

	// Start fields.
	UserID    string   `json:"user_id,omitempty"`
	VideoPath string   `json:"video_path,omitempty"`
	ProjectID string   `json:"project_id,omitempty"`
	DocID     string   `json:"doc_id,omitempty"`
	Language  string   `json:"language,omitempty"`
	Goal      string   `json:"goal,omitempty"`
	Languages []string `json:"languages,omitempty"`

	// Decision fields.
	Approved     bool           `json:"approved,omitempty"`
	ModifiedArgs map[string]any `json:"modified_args,omitempty"`
	Feedback     string         `json:"feedback,omitempty"`

	// Message fields.
	Text           string  `json:"text,omitempty"`
	Document       *string `json:"document,omitempty"`
	SelectionText  string  `json:"selection_text,omitempty"`
	SelectionStart int     `json:"selection_start,omitempty"`
	SelectionEnd   int     `json:"selection_end,omitempty"`
	Image          string  `json:"image,omitempty"`
}

// handleRuns owns one WebSocket connection. The first frame starts a run;
// event frames stream back until the run's end-of-stream, then compile and
// edit sessions keep the socket open for further turns.
func (s *Server) handleRuns(ws *websocket.Conn) {
	defer func() { _ = ws.Close() }()
	ctx := ws.Request().Context()

	start, err := s.readFrame(ws)
	if err != nil {
		return
	}
	if start.UserID == "" {
		s.sendError(ws, vderrors.ValidationError("user_id is required"))
		return
	}

	switch start.Action {
	case actionProcess:
		s.runProcess(ctx, ws, start)
	case actionCompile:
		s.runCompile(ctx, ws, start)
	case actionEdit:
		s.runEdit(ctx, ws, start)
	default:
		s.sendError(ws, vderrors.ProtocolError("unknown start action").
			WithContext("action", start.Action))
	}
}

func (s *Server) readFrame(ws *websocket.Conn) (*clientFrame, error) {
	var raw string
	if err := websocket.Message.Receive(ws, &raw); err != nil {
		if err != io.EOF {
			slog.Debug("websocket receive failed", logfields.Error(err))
		}
		return nil, err
	}
	frame := &clientFrame{}
	if err := json.Unmarshal([]byte(raw), frame); err != nil {
		s.sendError(ws, vderrors.ProtocolError("malformed client frame").
			WithContext("cause", err.Error()))
		return nil, err
	}
	return frame, nil
}

// sendError ships one Error event frame without tearing the socket down.
func (s *Server) sendError(ws *websocket.Conn, err error) {
	frame, encodeErr := events.EncodeFrame(events.Error{
		ErrorMessage: err.Error(),
		Recoverable:  true,
		Timestamp:    events.Now(),
	})
	if encodeErr != nil {
		return
	}
	_ = websocket.Message.Send(ws, string(frame))
}

// relay forwards every stream event to the socket. A dead client cancels
// the run and drains the channel so the worker can finish.
func (s *Server) relay(ws *websocket.Conn, stream *runner.Stream) bool {
	for event := range stream.Events() {
		frame, err := events.EncodeFrame(event)
		if err != nil {
			slog.Error("encode event frame", logfields.Error(err))
			continue
		}
		if err := websocket.Message.Send(ws, string(frame)); err != nil {
			stream.Cancel()
			stream.Drain()
			return false
		}
		s.opts.Recorder.IncEventsEmitted(event.EventType())
	}
	return true
}

// runProcess streams one video pipeline run and closes the socket after
// its terminal event.
func (s *Server) runProcess(ctx context.Context, ws *websocket.Conn, start *clientFrame) {
	if start.VideoPath == "" {
		s.sendError(ws, vderrors.ValidationError("video_path is required"))
		return
	}
	pr := runner.NewPipelineRunner(
		start.UserID,
		s.docsFor(start.UserID),
		s.opts.Analyzer,
		s.opts.Extractor,
		s.opts.Tracker,
		s.cfg.Agent.StageTimeout,
		s.cfg.Runner.QueueSize,
	)
	s.relay(ws, pr.Run(ctx, start.VideoPath))
}

// runCompile drives the interactive compilation session: stream a turn,
// then wait for a decision or follow-up message and stream the next one.
func (s *Server) runCompile(ctx context.Context, ws *websocket.Conn, start *clientFrame) {
	if start.ProjectID == "" {
		s.sendError(ws, vderrors.ValidationError("project_id is required"))
		return
	}

	docs := s.docsFor(start.UserID)
	projects := projectstore.New(s.cfg.UserDir(start.UserID), docs)
	compiler := compile.New(docs, projects, compilestore.New(projects.ProjectDir(start.ProjectID)))

	compileFn := func(_ context.Context, args map[string]any) (map[string]any, error) {
		notes, _ := args["notes"].(string)
		result, err := compiler.Run(start.ProjectID, notes)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"version":    result.Version,
			"languages":  result.Languages,
			"output_dir": result.OutputDir,
			"documents":  result.Documents,
		}, nil
	}

	cr := runner.NewCompilerRunner(start.UserID, start.ProjectID, s.opts.Compiler, compileFn, s.cfg.Runner.QueueSize)

	stream, err := cr.Run(ctx, start.Goal)
	if err != nil {
		s.sendError(ws, err)
		return
	}
	if !s.relay(ws, stream) {
		return
	}

	for {
		frame, err := s.readFrame(ws)
		if err != nil {
			return
		}

		var next *runner.Stream
		switch frame.Action {
		case actionDecision:
			next, err = cr.Resume(ctx, agent.Decision{
				Approved:     frame.Approved,
				ModifiedArgs: frame.ModifiedArgs,
				Feedback:     frame.Feedback,
			})
		case actionMessage:
			next, err = cr.SendMessage(ctx, frame.Text)
		case actionCancel:
			return
		default:
			s.sendError(ws, vderrors.ProtocolError("unknown action").
				WithContext("action", frame.Action))
			continue
		}
		if err != nil {
			s.sendError(ws, err)
			continue
		}
		if !s.relay(ws, next) {
			return
		}
	}
}

// runEdit drives the conversational editor: start the session with the
// document's current content, then stream one turn per message frame.
func (s *Server) runEdit(ctx context.Context, ws *websocket.Conn, start *clientFrame) {
	if start.DocID == "" {
		s.sendError(ws, vderrors.ValidationError("doc_id is required"))
		return
	}
	language := start.Language
	if language == "" {
		language = "en"
	}

	docs := s.docsFor(start.UserID)
	content, found, err := docs.GetContent(start.DocID, language)
	if err != nil {
		s.sendError(ws, err)
		return
	}
	if !found {
		s.sendError(ws, vderrors.NotFound("document content not found").
			WithContext("doc_id", start.DocID).
			WithContext("language", language))
		return
	}

	er := runner.NewEditorRunner(start.UserID, start.DocID, docs, s.opts.Editor, s.cfg.Runner.QueueSize)
	if err := er.Start(ctx, content); err != nil {
		s.sendError(ws, err)
		return
	}

	for {
		frame, err := s.readFrame(ws)
		if err != nil {
			return
		}

		switch frame.Action {
		case actionMessage:
			input := runner.EditorInput{
				Text:            frame.Text,
				DocumentContent: frame.Document,
				Image:           frame.Image,
			}
			if frame.SelectionText != "" {
				input.Selection = &runner.Selection{
					Text:        frame.SelectionText,
					StartOffset: frame.SelectionStart,
					EndOffset:   frame.SelectionEnd,
				}
			}
			stream, err := er.SendMessage(ctx, input)
			if err != nil {
				s.sendError(ws, err)
				continue
			}
			if !s.relay(ws, stream) {
				return
			}
		case actionCancel:
			return
		default:
			s.sendError(ws, vderrors.ProtocolError("unknown action").
				WithContext("action", frame.Action))
		}
	}
}
