package pipeline

import (
	"context"
	"time"

	"github.com/keagan/geoframes/internal/exiftool"
	"github.com/keagan/geoframes/internal/ffmpeg"
	"github.com/keagan/geoframes/internal/frames"
	"github.com/keagan/geoframes/internal/sampling"
	"github.com/keagan/geoframes/internal/timestamp"
)

// Prober reads video stream metadata
type Prober interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

// Geotagger interpolates GPS positions into every image matching a pattern
type Geotagger interface {
	Geotag(ctx context.Context, track, pattern string) (exiftool.GeotagResult, error)
}

// Tagger is an open tag-writing session
type Tagger interface {
	frames.TagWriter
	Close() error
}

// Tools are the external collaborators of a pipeline
type Tools struct {
	Prober Prober
	// Frames opens a frame source on a video file
	Frames func(videoPath string) frames.Source
	// OpenTagger starts a tag session; nil disables tagging
	OpenTagger func(ctx context.Context) (Tagger, error)
	// Geotagger may be nil when exiftool is unavailable
	Geotagger Geotagger
}

// ExtractOptions configures one extraction run
type ExtractOptions struct {
	// Workers overrides the configured worker count when positive
	Workers int
	// Software is the Software tag value
	Software string
	// OnPlan is called once the plan is known, before any frame is written
	OnPlan func(sampling.Plan)
	// OnFrame is called after each frame
	OnFrame func(frames.Outcome)
}

// Result describes a finished extraction run
type Result struct {
	RunID     string
	Video     *ffmpeg.VideoInfo
	Plan      sampling.Plan
	OutputDir string
	BaseName  string
	Report    *frames.Report
	Geotag    *exiftool.GeotagResult
	// GeotagErr is set when geotagging failed; frames are kept
	GeotagErr error
	Duration  time.Duration
}

// Preview is a dry-run view of a job
type Preview struct {
	Video     *ffmpeg.VideoInfo
	Plan      sampling.Plan
	OutputDir string
	BaseName  string
	// First and Last are the timestamps of the first and last planned frames
	First timestamp.Stamp
	Last  timestamp.Stamp
}
