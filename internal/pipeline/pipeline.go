package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/keagan/geoframes/internal/config"
	"github.com/keagan/geoframes/internal/exiftool"
	"github.com/keagan/geoframes/internal/ffmpeg"
	"github.com/keagan/geoframes/internal/frames"
	"github.com/keagan/geoframes/internal/imaging"
	"github.com/keagan/geoframes/internal/logging"
	"github.com/keagan/geoframes/internal/metrics"
	"github.com/keagan/geoframes/internal/sampling"
	"github.com/keagan/geoframes/internal/settings"
	"github.com/keagan/geoframes/internal/timestamp"
	"github.com/keagan/geoframes/pkg/util"
	"github.com/rs/zerolog"
)

// ErrDegraded marks a run whose frames were written but could not be geotagged
var ErrDegraded = errors.New("geotagging failed, frames were kept")

// Pipeline orchestrates probing, planning, frame extraction and geotagging
type Pipeline struct {
	logger zerolog.Logger
	config *config.Config
	tools  Tools
}

// New creates a pipeline backed by ffmpeg and exiftool. A missing ffmpeg is
// fatal; a missing exiftool only disables tagging and geotagging.
func New(logger zerolog.Logger, appCfg *config.Config) (*Pipeline, error) {
	if appCfg == nil {
		appCfg = config.Default()
	}

	ffmpegExec, err := ffmpeg.New(logger, ffmpeg.Options{
		FFmpegPath:  appCfg.Tools.FFmpeg,
		FFprobePath: appCfg.Tools.FFprobe,
		Threads:     appCfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	tools := Tools{
		Prober: ffmpegExec,
		Frames: func(videoPath string) frames.Source {
			return ffmpeg.NewFrameReader(ffmpegExec, videoPath)
		},
	}

	tool, err := exiftool.New(logger, appCfg.Tools.Exiftool)
	if err != nil {
		logger.Warn().Err(err).Msg("exiftool unavailable, frames will be neither tagged nor geotagged")
	} else {
		tools.OpenTagger = func(ctx context.Context) (Tagger, error) {
			return tool.OpenSession(ctx)
		}
		tools.Geotagger = tool
	}

	return NewWithTools(logger, appCfg, tools), nil
}

// NewWithTools creates a pipeline on explicit collaborators
func NewWithTools(logger zerolog.Logger, appCfg *config.Config, tools Tools) *Pipeline {
	if appCfg == nil {
		appCfg = config.Default()
	}
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		config: appCfg,
		tools:  tools,
	}
}

// Probe reads the metadata of a video file
func (p *Pipeline) Probe(ctx context.Context, path string) (*ffmpeg.VideoInfo, error) {
	if path == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}
	info, err := p.tools.Prober.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	return info, nil
}

// Preview probes the video and builds the plan without writing anything
func (p *Pipeline) Preview(ctx context.Context, job *settings.Job) (*Preview, error) {
	info, plan, err := p.plan(ctx, job)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Video:     info,
		Plan:      plan,
		OutputDir: job.OutputDir(),
		BaseName:  job.BaseName(),
	}
	if !plan.Empty() {
		mapper := timestamp.NewMapper(job.Anchor, plan.FrameInterval)
		preview.First = mapper.At(0)
		preview.Last = mapper.At(plan.Count - 1)
	}
	return preview, nil
}

func (p *Pipeline) plan(ctx context.Context, job *settings.Job) (*ffmpeg.VideoInfo, sampling.Plan, error) {
	if job == nil {
		return nil, sampling.Plan{}, fmt.Errorf("job cannot be nil")
	}

	info, err := p.Probe(ctx, job.VideoPath)
	if err != nil {
		return nil, sampling.Plan{}, err
	}

	video := sampling.Video{
		FrameRate:   info.FPS,
		Width:       info.Width,
		Height:      info.Height,
		TotalFrames: info.FrameCount,
	}
	plan, err := sampling.BuildPlan(video, job.Params, job.FrameHeight)
	if err != nil {
		return nil, sampling.Plan{}, fmt.Errorf("failed to plan %s: %w", filepath.Base(job.VideoPath), err)
	}
	return info, plan, nil
}

// Extract runs a full job: plan, write and tag every frame, then geotag the
// output folder once. Fatal problems are reported before the output folder
// is created. A failed geotagging step returns the result together with an
// error wrapping ErrDegraded.
func (p *Pipeline) Extract(ctx context.Context, job *settings.Job, opts ExtractOptions) (*Result, error) {
	started := time.Now()
	logger, runID := logging.WithRun(p.logger)

	collector := metrics.New()
	defer func() {
		collector.ObserveRun(time.Since(started))
		if path := p.config.Metrics.Textfile; path != "" {
			if err := collector.WriteTextfile(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("failed to write metrics")
			}
		}
	}()

	info, plan, err := p.plan(ctx, job)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		Video:     info,
		Plan:      plan,
		OutputDir: job.OutputDir(),
		BaseName:  job.BaseName(),
	}

	p.recap(logger, job, info, plan)
	if opts.OnPlan != nil {
		opts.OnPlan(plan)
	}

	if plan.Empty() {
		logger.Warn().
			Float64("duration", plan.Video.Duration()).
			Float64("interval", plan.SamplingInterval).
			Msg("video is shorter than one sampling interval, nothing to extract")
		result.Report = &frames.Report{}
		result.Duration = time.Since(started)
		return result, nil
	}

	if err := util.EnsureDir(result.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	var tagger Tagger
	if p.tools.OpenTagger != nil {
		// The session outlives cancellation so the in-flight frame can be tagged
		tagger, err = p.tools.OpenTagger(context.WithoutCancel(ctx))
		if err != nil {
			logger.Warn().Err(err).Msg("could not start tag session, frames will not be tagged")
			tagger = nil
		}
	}
	if tagger != nil {
		defer func() {
			if err := tagger.Close(); err != nil {
				logger.Warn().Err(err).Msg("tag session did not exit cleanly")
			}
		}()
	}

	workers := p.config.Output.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	var tags frames.TagWriter
	if tagger != nil {
		tags = tagger
	}
	extractor := frames.NewExtractor(logger,
		p.tools.Frames(job.VideoPath),
		tags,
		imaging.NewEncoder(p.config.Output.JPEGQuality),
		frames.Options{Workers: workers, OnFrame: opts.OnFrame},
	)

	report, err := extractor.Run(ctx, frames.Job{
		Plan:      plan,
		Mapper:    timestamp.NewMapper(job.Anchor, plan.FrameInterval),
		Metadata:  job.Metadata(opts.Software),
		OutputDir: result.OutputDir,
		BaseName:  result.BaseName,
	})
	result.Report = report
	collector.ObserveReport(report)
	if err != nil {
		result.Duration = time.Since(started)
		return result, err
	}

	logger.Info().
		Int("planned", report.Planned).
		Int("written", report.Written).
		Int("tagged", report.Tagged).
		Int("failed", len(report.Failures)).
		Msg("frame extraction complete")

	geo, err := p.Geotag(ctx, job.TrackPath, result.OutputDir, result.BaseName)
	result.Geotag = geo
	if geo != nil {
		collector.ObserveGeotag(geo.ExitCode)
	} else {
		collector.ObserveGeotag(-1)
	}
	result.Duration = time.Since(started)

	if err != nil {
		result.GeotagErr = err
		logger.Error().Err(err).Str("output", result.OutputDir).Msg("geotagging failed, frames kept without positions")
		return result, fmt.Errorf("%w: %w", ErrDegraded, err)
	}

	logger.Info().
		Str("output", result.OutputDir).
		Dur("elapsed", result.Duration).
		Msg("extraction complete")
	return result, nil
}

// Geotag interpolates the GPS track into every frame of base in dir
func (p *Pipeline) Geotag(ctx context.Context, track, dir, base string) (*exiftool.GeotagResult, error) {
	if p.tools.Geotagger == nil {
		return nil, fmt.Errorf("exiftool is not available")
	}
	if !util.FileExists(track) {
		return nil, fmt.Errorf("gps track not found: %s", track)
	}

	res, err := p.tools.Geotagger.Geotag(ctx, track, frames.GlobPattern(dir, base))
	return &res, err
}

func (p *Pipeline) recap(logger zerolog.Logger, job *settings.Job, info *ffmpeg.VideoInfo, plan sampling.Plan) {
	g := plan.Geometry
	if g.Clamped {
		logger.Warn().
			Int("requested", job.FrameHeight).
			Int("height", g.Height).
			Msg("frame height raised to the minimum")
	}

	evt := logger.Info().
		Str("video", filepath.Base(job.VideoPath)).
		Str("size", humanize.Bytes(uint64(info.Size))).
		Dur("duration", info.Duration).
		Float64("fps", info.FPS).
		Str("start", job.Anchor.EffectiveStart().Format("2006-01-02 15:04:05.000")).
		Str("timezone", job.Anchor.Zone).
		Str("mode", string(plan.Mode)).
		Int("frames", plan.Count).
		Str("geometry", fmt.Sprintf("%dx%d", g.Width, g.Height))

	if t, ok := job.Params.(sampling.Timelapse); ok {
		evt = evt.Int("timelapse_fps", t.OutputFPS)
	} else {
		evt = evt.Float64("interval", plan.SamplingInterval)
	}
	evt.Msg("extraction plan")
}
