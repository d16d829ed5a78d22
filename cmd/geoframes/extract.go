package main

import (
	"fmt"
	"os"
	"time"

	"github.com/keagan/geoframes/internal/config"
	"github.com/keagan/geoframes/internal/frames"
	"github.com/keagan/geoframes/internal/pipeline"
	"github.com/keagan/geoframes/internal/sampling"
	"github.com/keagan/geoframes/internal/settings"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// jobFlags override values of a settings file
type jobFlags struct {
	video, track, output string
	interval             float64
	timelapseFPS         int
	height               int
	offset               float64
	start, timezone      string
	author, maker, model string
}

func (f *jobFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.video, "video", "", "video file")
	fs.StringVar(&f.track, "track", "", "GPS track file (GPX, KML, ...)")
	fs.StringVar(&f.output, "output", "", "output folder; frames go to <output>/<video file name>")
	fs.Float64Var(&f.interval, "interval", 0, "seconds between sampled frames (0.5-60)")
	fs.IntVar(&f.timelapseFPS, "timelapse-fps", 0, "treat the video as a timelapse shot at this rate (1-15)")
	fs.IntVar(&f.height, "height", 0, "output frame height, 0 keeps the source height")
	fs.Float64Var(&f.offset, "offset", 0, "camera clock correction in seconds (-10 to 10)")
	fs.StringVar(&f.start, "start", "", "recording start, YYYY-MM-DDTHH:MM:SS.mmm")
	fs.StringVar(&f.timezone, "timezone", "", "recording timezone offset, ±HH:MM")
	fs.StringVar(&f.author, "author", "", "Artist tag")
	fs.StringVar(&f.maker, "make", "", "camera maker tag")
	fs.StringVar(&f.model, "model", "", "camera model tag")
}

// settings loads the optional settings file and applies changed flags
func (f *jobFlags) settings(cmd *cobra.Command, args []string) (*settings.Settings, error) {
	s := &settings.Settings{}
	if len(args) == 1 {
		loaded, err := settings.Load(args[0])
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	fs := cmd.Flags()
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("video", func() { s.VideoFile = f.video })
	set("track", func() { s.GPSTrackFile = f.track })
	set("output", func() { s.OutputFolder = f.output })
	set("interval", func() { s.FrameSampling, s.Timelapse = f.interval, false })
	set("timelapse-fps", func() { s.TimelapseFPS, s.Timelapse = f.timelapseFPS, true })
	set("height", func() { s.FrameHeight = f.height })
	set("offset", func() { s.TimeOffset = f.offset })
	set("start", func() { s.StartDatetime = f.start })
	set("timezone", func() { s.RecTimezone = f.timezone })
	set("author", func() { s.Author = f.author })
	set("make", func() { s.CameraMaker = f.maker })
	set("model", func() { s.CameraModel = f.model })
	return s, nil
}

func (f *jobFlags) job(cmd *cobra.Command, args []string) (*settings.Job, error) {
	s, err := f.settings(cmd, args)
	if err != nil {
		return nil, err
	}
	return s.Validate()
}

func newExtractCmd() *cobra.Command {
	var (
		flags      jobFlags
		workers    int
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "extract [settings.toml]",
		Short: "Extract, timestamp and geotag frames from a video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := flags.job(cmd, args)
			if err != nil {
				return err
			}

			pipe, err := pipeline.New(log.Logger, config.FromContext(cmd.Context()))
			if err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			opts := pipeline.ExtractOptions{
				Workers:  workers,
				Software: softwareTag(cmd),
			}
			if !noProgress {
				opts.OnPlan = func(plan sampling.Plan) {
					if !plan.Empty() {
						bar = newProgressBar(plan.Count)
					}
				}
				opts.OnFrame = func(frames.Outcome) {
					if bar != nil {
						_ = bar.Add(1)
					}
				}
			}

			result, err := pipe.Extract(cmd.Context(), job, opts)
			if bar != nil {
				_ = bar.Finish()
			}
			if result != nil && result.Report != nil {
				r := result.Report
				log.Info().
					Str("output", result.OutputDir).
					Int("written", r.Written).
					Int("skipped", r.Skipped()).
					Int("untagged", r.Written-r.Tagged).
					Dur("elapsed", result.Duration.Round(time.Millisecond)).
					Msg("done")
			}
			return err
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel frame workers (default from config)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func newGeotagCmd() *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "geotag [settings.toml]",
		Short: "Geotag frames already extracted for a job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.settings(cmd, args)
			if err != nil {
				return err
			}
			if s.VideoFile == "" || s.GPSTrackFile == "" || s.OutputFolder == "" {
				return fmt.Errorf("video, track and output are required")
			}
			job := settings.Job{VideoPath: s.VideoFile, TrackPath: s.GPSTrackFile, OutputRoot: s.OutputFolder}

			pipe, err := pipeline.New(log.Logger, config.FromContext(cmd.Context()))
			if err != nil {
				return err
			}

			res, err := pipe.Geotag(cmd.Context(), job.TrackPath, job.OutputDir(), job.BaseName())
			if err != nil {
				return err
			}
			log.Info().Int("files", res.Files).Str("output", job.OutputDir()).Msg("geotagging complete")
			return nil
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func newPlanCmd() *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "plan [settings.toml]",
		Short: "Show what extract would do without writing anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := flags.job(cmd, args)
			if err != nil {
				return err
			}

			pipe, err := pipeline.New(log.Logger, config.FromContext(cmd.Context()))
			if err != nil {
				return err
			}

			preview, err := pipe.Preview(cmd.Context(), job)
			if err != nil {
				return err
			}

			plan := preview.Plan
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode:      %s\n", plan.Mode)
			fmt.Fprintf(out, "frames:    %d\n", plan.Count)
			fmt.Fprintf(out, "sampling:  every %.4fs of video\n", plan.SamplingInterval)
			fmt.Fprintf(out, "clock:     +%.4fs per frame\n", plan.FrameInterval)
			fmt.Fprintf(out, "geometry:  %dx%d (source %dx%d)\n",
				plan.Geometry.Width, plan.Geometry.Height, plan.Video.Width, plan.Video.Height)
			fmt.Fprintf(out, "output:    %s\n", frames.GlobPattern(preview.OutputDir, preview.BaseName))
			if plan.Empty() {
				fmt.Fprintln(out, "video is shorter than one sampling interval")
				return nil
			}
			fmt.Fprintf(out, "first:     %s %s\n", preview.First, job.Anchor.Zone)
			fmt.Fprintf(out, "last:      %s %s\n", preview.Last, job.Anchor.Zone)
			return nil
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func softwareTag(cmd *cobra.Command) string {
	if s := config.FromContext(cmd.Context()).Output.Software; s != "" {
		return s
	}
	return software()
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
