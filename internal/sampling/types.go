package sampling

import (
	"errors"
	"fmt"
)

// Parameter bounds accepted for each sampling mode
const (
	MinIntervalSeconds = 0.5
	MaxIntervalSeconds = 60.0
	MinTimelapseFPS    = 1
	MaxTimelapseFPS    = 15
)

// ErrUnreadableVideo is returned when probed metadata cannot drive a plan
var ErrUnreadableVideo = errors.New("video is unreadable")

// Video holds the probed properties of the source recording
type Video struct {
	FrameRate   float64
	Width       int
	Height      int
	TotalFrames int
}

// Duration returns the video length in seconds derived from the frame count
func (v Video) Duration() float64 {
	if v.FrameRate <= 0 {
		return 0
	}
	return float64(v.TotalFrames) / v.FrameRate
}

// Validate rejects metadata that describes a degenerate video
func (v Video) Validate() error {
	if v.TotalFrames <= 0 {
		return fmt.Errorf("%w: no frames", ErrUnreadableVideo)
	}
	if v.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate %.3f", ErrUnreadableVideo, v.FrameRate)
	}
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrUnreadableVideo, v.Width, v.Height)
	}
	return nil
}

// Mode names a sampling strategy
type Mode string

const (
	ModeFixedInterval Mode = "interval"
	ModeTimelapse     Mode = "timelapse"
)

// Params selects how source instants are chosen. Implemented only by
// FixedInterval and Timelapse.
type Params interface {
	Mode() Mode
	Validate() error
	sealed()
}

// FixedInterval samples one frame every IntervalSeconds of source video
type FixedInterval struct {
	IntervalSeconds float64
}

func (FixedInterval) Mode() Mode { return ModeFixedInterval }

func (p FixedInterval) Validate() error {
	if p.IntervalSeconds < MinIntervalSeconds || p.IntervalSeconds > MaxIntervalSeconds {
		return fmt.Errorf("frame sampling %.3fs out of range [%.1f, %.1f]",
			p.IntervalSeconds, MinIntervalSeconds, MaxIntervalSeconds)
	}
	return nil
}

func (FixedInterval) sealed() {}

// Timelapse samples every native frame while the embedded clock
// advances by 1/OutputFPS per extracted frame.
type Timelapse struct {
	OutputFPS int
}

func (Timelapse) Mode() Mode { return ModeTimelapse }

func (p Timelapse) Validate() error {
	if p.OutputFPS < MinTimelapseFPS || p.OutputFPS > MaxTimelapseFPS {
		return fmt.Errorf("timelapse fps %d out of range [%d, %d]",
			p.OutputFPS, MinTimelapseFPS, MaxTimelapseFPS)
	}
	return nil
}

func (Timelapse) sealed() {}

// Frame is one planned sampling instant
type Frame struct {
	Index         int
	SourceSeconds float64
}
