package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stubborncoder/vdocs/internal/agent"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// Canonical video-documentation stage names, in execution order.
const (
	StageAnalyze           = "analyze"
	StageIdentifyKeyframes = "identify_keyframes"
	StageGenerate          = "generate"
)

// FrameExtractor captures a still frame from a video. The production
// implementation shells out to a media decoder.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string, timestampSeconds float64, destPath string) error
}

// ContentWriter persists generated markdown. *docstore.Store satisfies it.
type ContentWriter interface {
	PutContent(docID, language, text string) error
}

// AnalyzeStage summarizes the video.
type AnalyzeStage struct {
	Analyzer     agent.VideoAnalyzer
	StageTimeout time.Duration
}

func (s *AnalyzeStage) Name() string           { return StageAnalyze }
func (s *AnalyzeStage) Timeout() time.Duration { return s.StageTimeout }

func (s *AnalyzeStage) Run(ctx context.Context, state *State) (map[string]any, error) {
	analysis, err := s.Analyzer.Analyze(ctx, state.VideoPath)
	if err != nil {
		return nil, err
	}
	state.Analysis = analysis
	return map[string]any{
		"summary_chars":    len(analysis.Summary),
		"duration_seconds": analysis.DurationSeconds,
		"topics":           len(analysis.Topics),
	}, nil
}

// KeyframeStage picks the moments worth capturing and extracts a screenshot
// for each into the document's screenshots directory.
type KeyframeStage struct {
	Analyzer     agent.VideoAnalyzer
	Extractor    FrameExtractor
	StageTimeout time.Duration
}

func (s *KeyframeStage) Name() string           { return StageIdentifyKeyframes }
func (s *KeyframeStage) Timeout() time.Duration { return s.StageTimeout }

func (s *KeyframeStage) Run(ctx context.Context, state *State) (map[string]any, error) {
	keyframes, err := s.Analyzer.IdentifyKeyframes(ctx, state.VideoPath, state.Analysis)
	if err != nil {
		return nil, err
	}
	state.Keyframes = keyframes

	captured := 0
	if s.Extractor != nil && len(keyframes) > 0 {
		if err := os.MkdirAll(state.ScreenshotsDir, 0o750); err != nil {
			return nil, vderrors.IOError("create screenshots directory", err)
		}
		for _, kf := range keyframes {
			dest := filepath.Join(state.ScreenshotsDir, kf.Filename)
			if err := s.Extractor.ExtractFrame(ctx, state.VideoPath, kf.TimestampSeconds, dest); err != nil {
				return nil, err
			}
			state.Screenshots = append(state.Screenshots, kf.Filename)
			captured++
		}
	}

	return map[string]any{
		"keyframes":   len(keyframes),
		"screenshots": captured,
	}, nil
}

// GenerateStage writes per-language markdown through the content writer.
type GenerateStage struct {
	Analyzer     agent.VideoAnalyzer
	Writer       ContentWriter
	StageTimeout time.Duration
}

func (s *GenerateStage) Name() string           { return StageGenerate }
func (s *GenerateStage) Timeout() time.Duration { return s.StageTimeout }

func (s *GenerateStage) Run(ctx context.Context, state *State) (map[string]any, error) {
	languages := state.Languages
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	docs, err := s.Analyzer.Generate(ctx, agent.GenerateRequest{
		VideoPath: state.VideoPath,
		Analysis:  state.Analysis,
		Keyframes: state.Keyframes,
		Languages: languages,
	})
	if err != nil {
		return nil, err
	}
	state.Docs = docs

	bytes := 0
	for language, text := range docs {
		if err := s.Writer.PutContent(state.DocID, language, text); err != nil {
			return nil, err
		}
		bytes += len(text)
	}

	return map[string]any{
		"languages": len(docs),
		"bytes":     bytes,
	}, nil
}

// VideoStages assembles the canonical video-documentation pipeline.
func VideoStages(analyzer agent.VideoAnalyzer, extractor FrameExtractor, writer ContentWriter, timeout time.Duration) []Stage {
	return []Stage{
		&AnalyzeStage{Analyzer: analyzer, StageTimeout: timeout},
		&KeyframeStage{Analyzer: analyzer, Extractor: extractor, StageTimeout: timeout},
		&GenerateStage{Analyzer: analyzer, Writer: writer, StageTimeout: timeout},
	}
}
