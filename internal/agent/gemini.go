package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/retry"
)

// GeminiClient implements the agent contracts against Google GenAI.
type GeminiClient struct {
	client *genai.Client
	model  string
	policy retry.Policy

	// threads caches per-thread conversation history so resumes and
	// follow-ups operate on the same state. One client is shared by every
	// concurrent run, so access goes through mu.
	mu      sync.Mutex
	threads map[string][]*genai.Content
}

// NewGeminiClient creates a client. The API key is required; callers that
// have no key should use a fake instead.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, vderrors.ValidationError("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, vderrors.DependencyError("create GenAI client", err, false)
	}
	return &GeminiClient{
		client:  client,
		model:   model,
		policy:  retry.DefaultPolicy(),
		threads: map[string][]*genai.Content{},
	}, nil
}

// videoPart uploads the video through the Files API and returns a part
// referencing it. Videos are too large to inline.
func (c *GeminiClient) videoPart(ctx context.Context, videoPath string) (*genai.Part, error) {
	var file *genai.File
	err := c.policy.Do(ctx, func() error {
		var uploadErr error
		file, uploadErr = c.client.Files.UploadFromPath(ctx, videoPath, nil)
		if uploadErr != nil {
			return vderrors.DependencyError("upload video", uploadErr, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return genai.NewPartFromURI(file.URI, file.MIMEType), nil
}

func (c *GeminiClient) generateJSON(ctx context.Context, contents []*genai.Content, target any) error {
	var resp *genai.GenerateContentResponse
	err := c.policy.Do(ctx, func() error {
		var genErr error
		resp, genErr = c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
		if genErr != nil {
			return vderrors.DependencyError("generate content", genErr, true)
		}
		return nil
	})
	if err != nil {
		return err
	}
	text := resp.Text()
	if err := json.Unmarshal([]byte(text), target); err != nil {
		return vderrors.DependencyError("parse model response", err, false).WithContext("response", truncate(text, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Analyze summarizes the video.
func (c *GeminiClient) Analyze(ctx context.Context, videoPath string) (*VideoAnalysis, error) {
	part, err := c.videoPart(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	prompt := genai.NewPartFromText(
		"Analyze this instructional video. Respond with JSON: " +
			`{"summary": string, "duration_seconds": number, "topics": [string], "language": string}`)

	var analysis VideoAnalysis
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{part, prompt}, genai.RoleUser)}
	if err := c.generateJSON(ctx, contents, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// IdentifyKeyframes picks the moments to screenshot.
func (c *GeminiClient) IdentifyKeyframes(ctx context.Context, videoPath string, analysis *VideoAnalysis) ([]Keyframe, error) {
	part, err := c.videoPart(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	prompt := genai.NewPartFromText(fmt.Sprintf(
		"The video covers: %s. Identify the key moments a reader needs to see. "+
			`Respond with JSON: [{"timestamp_seconds": number, "filename": string, "caption": string}]`,
		analysis.Summary))

	var keyframes []Keyframe
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{part, prompt}, genai.RoleUser)}
	if err := c.generateJSON(ctx, contents, &keyframes); err != nil {
		return nil, err
	}
	return keyframes, nil
}

// Generate writes per-language markdown from the analysis and keyframes.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (map[string]string, error) {
	captions := make([]string, 0, len(req.Keyframes))
	for _, kf := range req.Keyframes {
		captions = append(captions, fmt.Sprintf("%s: %s", kf.Filename, kf.Caption))
	}

	prompt := genai.NewPartFromText(fmt.Sprintf(
		"Write step-by-step markdown documentation for a video with this summary:\n%s\n\n"+
			"Embed these screenshots with markdown image syntax where they belong:\n%s\n\n"+
			"Produce one document per language (%s). "+
			`Respond with JSON mapping language code to markdown: {"en": "# ..."}`,
		req.Analysis.Summary, strings.Join(captions, "\n"), strings.Join(req.Languages, ", ")))

	var docs map[string]string
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{prompt}, genai.RoleUser)}
	if err := c.generateJSON(ctx, contents, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// threadHistory returns a copy of the thread's history so streaming can
// proceed without holding the lock.
func (c *GeminiClient) threadHistory(threadID string) []*genai.Content {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*genai.Content(nil), c.threads[threadID]...)
}

func (c *GeminiClient) appendThread(threadID string, contents ...*genai.Content) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[threadID] = append(c.threads[threadID], contents...)
}

// seedThread initializes a thread's history once. It reports whether this
// call was the one that seeded it.
func (c *GeminiClient) seedThread(threadID string, content *genai.Content) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.threads[threadID]; ok {
		return false
	}
	c.threads[threadID] = []*genai.Content{content}
	return true
}

// streamTurn appends the user content to the thread, streams the model
// response as tokens, and records the reply in thread history.
func (c *GeminiClient) streamTurn(ctx context.Context, threadID string, content *genai.Content, emit EmitFunc) error {
	history := append(c.threadHistory(threadID), content)

	var reply strings.Builder
	for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.model, history, nil) {
		if err != nil {
			return vderrors.DependencyError("stream content", err, true)
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		reply.WriteString(text)
		emit(StreamEvent{Kind: KindToken, Token: text})
	}

	c.appendThread(threadID, content, genai.NewContentFromText(reply.String(), genai.RoleModel))
	return nil
}

// Compiler returns the CompilerAgent view of the client.
func (c *GeminiClient) Compiler() CompilerAgent { return &geminiCompiler{c} }

// Editor returns the EditorAgent view of the client.
func (c *GeminiClient) Editor() EditorAgent { return &geminiEditor{c} }

type geminiCompiler struct {
	c *GeminiClient
}

// Plan starts a compilation planning turn. The hosted model has no native
// interrupt mechanism, so the plan itself becomes the approval gate: the
// returned interrupt asks the operator to approve executing it.
func (g *geminiCompiler) Plan(ctx context.Context, threadID, goal string, emit EmitFunc) (*Interrupt, error) {
	c := g.c
	content := genai.NewContentFromText(
		"Plan how to compile this project into a manual. Goal: "+goal, genai.RoleUser)
	if err := c.streamTurn(ctx, threadID, content, emit); err != nil {
		return nil, err
	}
	return &Interrupt{
		ID:       uuid.NewString(),
		ToolName: "execute_compilation",
		ToolArgs: map[string]any{"goal": goal},
		Message:  "Approve executing the compilation plan?",
	}, nil
}

// Resume continues after a decision. Approvals complete the turn; rejections
// feed the feedback back for a revised plan and pause again.
func (g *geminiCompiler) Resume(ctx context.Context, threadID string, decision Decision, emit EmitFunc) (*Interrupt, error) {
	c := g.c
	if decision.Approved {
		content := genai.NewContentFromText("The plan was approved. Summarize the compilation result.", genai.RoleUser)
		if err := c.streamTurn(ctx, threadID, content, emit); err != nil {
			return nil, err
		}
		return nil, nil
	}

	feedback := decision.Feedback
	if feedback == "" {
		feedback = "The plan was rejected. Propose a revised plan."
	}
	content := genai.NewContentFromText("Rejected: "+feedback, genai.RoleUser)
	if err := c.streamTurn(ctx, threadID, content, emit); err != nil {
		return nil, err
	}
	return &Interrupt{
		ID:       uuid.NewString(),
		ToolName: "execute_compilation",
		Message:  "Approve executing the revised plan?",
	}, nil
}

// SendMessage sends a free-form follow-up between turns.
func (g *geminiCompiler) SendMessage(ctx context.Context, threadID, text string, emit EmitFunc) (*Interrupt, error) {
	content := genai.NewContentFromText(text, genai.RoleUser)
	if err := g.c.streamTurn(ctx, threadID, content, emit); err != nil {
		return nil, err
	}
	return nil, nil
}

type geminiEditor struct {
	c *GeminiClient
}

// Start seeds an editing thread with the document content.
func (g *geminiEditor) Start(ctx context.Context, threadID, documentContent string) error {
	g.c.seedThread(threadID, genai.NewContentFromText(
		"You are editing this markdown document. Propose changes via the "+
			"replace_text, insert_text, delete_text and update_image_caption tools.\n\n"+documentContent,
		genai.RoleUser))
	return nil
}

// SendMessage runs one editing turn, streaming tokens.
func (g *geminiEditor) SendMessage(ctx context.Context, threadID string, msg EditorMessage, emit EmitFunc) error {
	var parts []*genai.Part
	if msg.HasDocument {
		parts = append(parts, genai.NewPartFromText("Current document (authoritative):\n\n"+msg.Document))
	}
	if msg.SelectionText != "" {
		parts = append(parts, genai.NewPartFromText(fmt.Sprintf(
			"Selected lines %d-%d:\n%s", msg.SelectionStartLine, msg.SelectionEndLine, msg.SelectionText)))
	}
	if msg.ImageData != "" {
		decoded, err := base64.StdEncoding.DecodeString(msg.ImageData)
		if err != nil {
			return vderrors.ValidationError("image attachment is not valid base64")
		}
		parts = append(parts, genai.NewPartFromText("An image is attached."),
			&genai.Part{InlineData: &genai.Blob{MIMEType: msg.ImageMIME, Data: decoded}})
	}
	parts = append(parts, genai.NewPartFromText(msg.Text))

	return g.c.streamTurn(ctx, threadID, genai.NewContentFromParts(parts, genai.RoleUser), emit)
}
