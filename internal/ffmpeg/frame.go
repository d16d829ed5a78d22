package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/keagan/geoframes/pkg/util"
)

// DecodeFrame seeks input to at and decodes a single frame
func (e *Executor) DecodeFrame(ctx context.Context, input string, at time.Duration) (image.Image, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}

	var buf bytes.Buffer
	opts := RunOptions{
		Args: []string{
			"-ss", util.FormatDuration(at),
			"-i", input,
			"-frames:v", "1",
			"-an", "-sn",
			"-f", "image2pipe",
			"-c:v", "png",
			"-",
		},
		Stdout: &buf,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("frame decode")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		return nil, fmt.Errorf("decode frame at %s: %w", util.FormatDuration(at), err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("no frame at %s", util.FormatDuration(at))
	}

	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame image: %w", err)
	}
	return img, nil
}

// FrameReader reads frames from one video file
type FrameReader struct {
	exec  *Executor
	input string
}

// NewFrameReader binds the executor to a video file
func NewFrameReader(exec *Executor, input string) *FrameReader {
	return &FrameReader{exec: exec, input: input}
}

// Frame decodes the frame shown at the given source time
func (r *FrameReader) Frame(ctx context.Context, at time.Duration) (image.Image, error) {
	return r.exec.DecodeFrame(ctx, r.input, at)
}
