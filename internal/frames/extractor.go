package frames

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/keagan/geoframes/internal/imaging"
	"github.com/keagan/geoframes/internal/sampling"
	"github.com/keagan/geoframes/internal/timestamp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Stage names the step of the per-frame loop that failed
type Stage string

const (
	StageDecode Stage = "decode"
	StageWrite  Stage = "write"
	StageTag    Stage = "tag"
)

// Failure records one frame that could not be fully processed
type Failure struct {
	Index     int
	Stage     Stage
	Path      string
	Timestamp string
	Err       error
}

func (f Failure) Error() string {
	return fmt.Sprintf("frame %d (%s) %s: %v", f.Index, f.Timestamp, f.Stage, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report summarises an extraction run
type Report struct {
	Planned int
	Written int
	Tagged  int
	// Failures are sorted by frame index
	Failures []Failure
	// Canceled is set when the run stopped before the last planned frame
	Canceled bool
}

// Skipped counts planned frames that produced no image
func (r *Report) Skipped() int {
	n := 0
	for _, f := range r.Failures {
		if f.Stage != StageTag {
			n++
		}
	}
	return n
}

func (r *Report) merge(o *Report) {
	r.Written += o.Written
	r.Tagged += o.Tagged
	r.Failures = append(r.Failures, o.Failures...)
	r.Canceled = r.Canceled || o.Canceled
}

// Outcome is reported after each processed frame
type Outcome struct {
	Index   int
	Path    string
	Written bool
	Tagged  bool
}

// Job binds a plan to its timestamps and output location
type Job struct {
	Plan      sampling.Plan
	Mapper    timestamp.Mapper
	Metadata  Metadata
	OutputDir string
	BaseName  string
}

// Options tune the extraction loop
type Options struct {
	// Workers splits the plan into that many contiguous index ranges.
	// Values below 2 process frames sequentially.
	Workers int
	// OnFrame is called after every frame. With several workers it is
	// called concurrently.
	OnFrame func(Outcome)
}

// Extractor produces one tagged JPEG per planned frame
type Extractor struct {
	logger zerolog.Logger
	source Source
	tags   TagWriter
	images ImageWriter
	opts   Options
}

// NewExtractor creates an extractor. A nil tags writer skips tagging.
func NewExtractor(logger zerolog.Logger, source Source, tags TagWriter, images ImageWriter, opts Options) *Extractor {
	return &Extractor{
		logger: logger.With().Str("component", "frames").Logger(),
		source: source,
		tags:   tags,
		images: images,
		opts:   opts,
	}
}

// Planned builds the planned frame for an index
func (job Job) Planned(index int) Planned {
	return Planned{
		Index:         index,
		SourceSeconds: job.Plan.Instant(index),
		Stamp:         job.Mapper.At(index),
	}
}

// Run processes every planned frame in ascending index order. Frame
// failures are collected in the report; only a canceled context or an
// invalid job produce an error. A frame already started when ctx is
// canceled is still completed.
func (e *Extractor) Run(ctx context.Context, job Job) (*Report, error) {
	if job.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if job.BaseName == "" {
		return nil, fmt.Errorf("base name is required")
	}

	report := &Report{Planned: job.Plan.Count}
	if job.Plan.Empty() {
		return report, nil
	}

	ranges := job.Plan.Split(e.opts.Workers)

	if len(ranges) == 1 {
		e.runRange(ctx, job, ranges[0][0], ranges[0][1], report)
	} else {
		var (
			g  errgroup.Group
			mu sync.Mutex
		)
		for _, r := range ranges {
			from, to := r[0], r[1]
			g.Go(func() error {
				part := &Report{}
				e.runRange(ctx, job, from, to, part)

				mu.Lock()
				report.merge(part)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Index < report.Failures[j].Index
	})

	if report.Canceled {
		return report, fmt.Errorf("extraction interrupted after %d of %d frames: %w",
			report.Written, report.Planned, ctx.Err())
	}
	return report, nil
}

func (e *Extractor) runRange(ctx context.Context, job Job, from, to int, report *Report) {
	for k := from; k < to; k++ {
		if ctx.Err() != nil {
			report.Canceled = true
			return
		}
		e.process(context.WithoutCancel(ctx), job, job.Planned(k), report)
	}
}

func (e *Extractor) process(ctx context.Context, job Job, p Planned, report *Report) {
	path := filepath.Join(job.OutputDir, FileName(job.BaseName, p.Index))
	outcome := Outcome{Index: p.Index, Path: path}
	defer func() {
		if e.opts.OnFrame != nil {
			e.opts.OnFrame(outcome)
		}
	}()

	fail := func(stage Stage, err error) {
		f := Failure{Index: p.Index, Stage: stage, Path: path, Timestamp: p.Stamp.String(), Err: err}
		report.Failures = append(report.Failures, f)
		e.logger.Warn().
			Err(err).
			Int("index", p.Index).
			Str("path", path).
			Str("timestamp", f.Timestamp).
			Str("stage", string(stage)).
			Msg("frame failed")
	}

	img, err := e.source.Frame(ctx, p.Seek())
	if err != nil {
		fail(StageDecode, err)
		return
	}

	g := job.Plan.Geometry
	if g.Resizes(job.Plan.Video.Height) {
		img = imaging.Resize(img, g.Width, g.Height)
	}

	if err := e.images.WriteJPEG(path, img); err != nil {
		fail(StageWrite, err)
		return
	}
	report.Written++
	outcome.Written = true

	if e.tags == nil {
		return
	}
	if err := e.tags.WriteTags(ctx, path, job.Metadata.Tags(p.Stamp)); err != nil {
		fail(StageTag, err)
		return
	}
	report.Tagged++
	outcome.Tagged = true

	e.logger.Debug().
		Int("index", p.Index).
		Str("path", path).
		Str("timestamp", p.Stamp.String()).
		Msg("frame written")
}
