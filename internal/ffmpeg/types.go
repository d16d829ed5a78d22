package ffmpeg

import (
	"io"
	"time"
)

// Options configures executor construction
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
}

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Size       int64
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	FrameCount int
	VideoCodec string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args       []string
	Stdout     io.Writer
	LogHandler func(line string)
}
