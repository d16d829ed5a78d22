package sampling

import (
	"fmt"
	"math"
)

// floorTolerance absorbs representation error in quotients such as 60/0.6
const floorTolerance = 1e-9

// Plan is the immutable schedule of sampling instants for one run
type Plan struct {
	Mode  Mode
	Video Video
	// Count is the number of planned frames
	Count int
	// SamplingInterval is the spacing of sampled instants in source time
	SamplingInterval float64
	// FrameInterval is the spacing of embedded timestamps
	FrameInterval float64
	Geometry      Geometry

	rate float64
}

// BuildPlan computes the sampling schedule for a video. It fails only on
// unreadable metadata or invalid parameters; a video shorter than one
// interval yields an empty plan.
func BuildPlan(video Video, params Params, requestedHeight int) (Plan, error) {
	if err := video.Validate(); err != nil {
		return Plan{}, err
	}
	if params == nil {
		return Plan{}, fmt.Errorf("sampling parameters are required")
	}
	if err := params.Validate(); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Mode:     params.Mode(),
		Video:    video,
		Geometry: ResolveGeometry(video.Width, video.Height, requestedHeight),
	}

	duration := video.Duration()

	switch p := params.(type) {
	case FixedInterval:
		plan.SamplingInterval = p.IntervalSeconds
		plan.FrameInterval = p.IntervalSeconds
		plan.Count = floorCount(duration / p.IntervalSeconds)
	case Timelapse:
		plan.SamplingInterval = 1 / video.FrameRate
		plan.FrameInterval = 1 / float64(p.OutputFPS)
		plan.rate = video.FrameRate
		plan.Count = floorCount(duration * video.FrameRate)
		if plan.Count > video.TotalFrames {
			plan.Count = video.TotalFrames
		}
	default:
		return Plan{}, fmt.Errorf("unsupported sampling mode %T", params)
	}

	return plan, nil
}

func floorCount(q float64) int {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return int(math.Floor(q + floorTolerance))
}

// Empty reports whether the video was shorter than one sampling interval
func (p Plan) Empty() bool {
	return p.Count == 0
}

// Instant returns the source time in seconds of the k-th planned frame
func (p Plan) Instant(k int) float64 {
	if p.rate > 0 {
		return float64(k) / p.rate
	}
	return float64(k) * p.SamplingInterval
}

// Frames lists every planned frame in ascending index order
func (p Plan) Frames() []Frame {
	return p.Range(0, p.Count)
}

// Range lists planned frames with indices in [from, to)
func (p Plan) Range(from, to int) []Frame {
	if from < 0 {
		from = 0
	}
	if to > p.Count {
		to = p.Count
	}
	if from >= to {
		return nil
	}

	frames := make([]Frame, 0, to-from)
	for k := from; k < to; k++ {
		frames = append(frames, Frame{Index: k, SourceSeconds: p.Instant(k)})
	}
	return frames
}

// Split divides the plan into at most n disjoint contiguous index ranges
func (p Plan) Split(n int) [][2]int {
	if n < 1 {
		n = 1
	}
	if n > p.Count {
		n = p.Count
	}

	ranges := make([][2]int, 0, n)
	if n == 0 {
		return ranges
	}

	size := p.Count / n
	extra := p.Count % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		ranges = append(ranges, [2]int{start, end})
		start = end
	}
	return ranges
}
