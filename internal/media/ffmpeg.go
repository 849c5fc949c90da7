// Package media shells out to ffmpeg for frame extraction. Media decoding
// is treated as an external dependency: failures surface as dependency
// errors rather than aborting the process.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// FFmpeg extracts frames with the ffmpeg binary.
type FFmpeg struct {
	Binary string
}

// NewFFmpeg creates an extractor using the given binary, defaulting to
// "ffmpeg" on PATH.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary}
}

// ExtractFrame captures the frame at the given timestamp into destPath.
func (f *FFmpeg) ExtractFrame(ctx context.Context, videoPath string, timestampSeconds float64, destPath string) error {
	// -ss before -i seeks on the demuxer, which is fast and accurate
	// enough for screenshots.
	cmd := exec.CommandContext(ctx, f.Binary,
		"-ss", fmt.Sprintf("%.3f", timestampSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		destPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return vderrors.DependencyError("extract video frame", err, false).
			WithContext("video", videoPath).
			WithContext("timestamp", timestampSeconds).
			WithContext("stderr", tail(stderr.String(), 400))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
