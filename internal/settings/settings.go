// Package settings loads and validates the per-video job settings file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/keagan/geoframes/internal/frames"
	"github.com/keagan/geoframes/internal/sampling"
	"github.com/keagan/geoframes/internal/timestamp"
	"github.com/keagan/geoframes/pkg/util"
)

// Settings are the raw job settings, from a file and command-line flags
type Settings struct {
	VideoFile    string
	GPSTrackFile string
	OutputFolder string

	FrameSampling float64
	FrameHeight   int
	TimeOffset    float64

	Timelapse    bool
	TimelapseFPS int

	// StartDatetime is "YYYY-MM-DDTHH:MM:SS[.fff]", camera clock
	StartDatetime string
	RecTimezone   string

	Author      string
	CameraMaker string
	CameraModel string
}

type file struct {
	Paths struct {
		VideoFile    string `toml:"video_file"`
		GPSTrackFile string `toml:"gps_track_file"`
		OutputFolder string `toml:"output_folder"`
	} `toml:"paths"`
	Process struct {
		FrameSampling any `toml:"frame_sampling"`
		FrameHeight   any `toml:"frame_height"`
		TimeOffset    any `toml:"time_offset"`
	} `toml:"process_settings"`
	Video struct {
		Timelapse     []any  `toml:"timelapse"`
		StartDatetime any    `toml:"start_datetime"`
		RecTimezone   string `toml:"rec_timezone"`
	} `toml:"video"`
	Metadata struct {
		Author      string `toml:"author"`
		CameraMaker string `toml:"camera_maker"`
		CameraModel string `toml:"camera_model"`
	} `toml:"metadata"`
}

// Load reads a TOML settings file. Values of the wrong type are reported
// together as a ValidationError.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes settings from TOML text
func Parse(data string) (*Settings, error) {
	var f file
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	v := &validator{}
	s := &Settings{
		VideoFile:    f.Paths.VideoFile,
		GPSTrackFile: f.Paths.GPSTrackFile,
		OutputFolder: f.Paths.OutputFolder,
		RecTimezone:  f.Video.RecTimezone,
		Author:       f.Metadata.Author,
		CameraMaker:  f.Metadata.CameraMaker,
		CameraModel:  f.Metadata.CameraModel,
	}

	if f.Process.FrameSampling != nil {
		n, ok := number(f.Process.FrameSampling)
		if !ok {
			v.add("process_settings.frame_sampling", "must be a number", f.Process.FrameSampling)
		}
		s.FrameSampling = n
	}
	if f.Process.FrameHeight != nil {
		n, ok := f.Process.FrameHeight.(int64)
		if !ok {
			v.add("process_settings.frame_height", "must be an integer", f.Process.FrameHeight)
		}
		s.FrameHeight = int(n)
	}
	if f.Process.TimeOffset != nil {
		n, ok := number(f.Process.TimeOffset)
		if !ok {
			v.add("process_settings.time_offset", "must be a number", f.Process.TimeOffset)
		}
		s.TimeOffset = n
	}

	if f.Video.Timelapse != nil {
		enabled, fps, err := timelapse(f.Video.Timelapse)
		v.check("video.timelapse", f.Video.Timelapse, err)
		s.Timelapse, s.TimelapseFPS = enabled, fps
	}

	switch start := f.Video.StartDatetime.(type) {
	case nil:
	case time.Time:
		s.StartDatetime = start.Format("2006-01-02T15:04:05.999999999")
	case string:
		s.StartDatetime = start
	default:
		v.add("video.start_datetime", "must be a datetime", start)
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return s, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// timelapse reads the [enabled, fps] pair
func timelapse(pair []any) (bool, int, error) {
	if len(pair) != 2 {
		return false, 0, fmt.Errorf("must be [enabled, fps]")
	}
	enabled, ok := pair[0].(bool)
	if !ok {
		return false, 0, fmt.Errorf("first element must be a boolean")
	}
	fps, ok := pair[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("second element must be an integer")
	}
	return enabled, int(fps), nil
}

// Job is a validated, immutable job description
type Job struct {
	VideoPath   string
	TrackPath   string
	OutputRoot  string
	Params      sampling.Params
	FrameHeight int
	Anchor      timestamp.Anchor
	Author      string
	Make        string
	Model       string
}

// OutputDir is the folder frames are written to, named after the video file
func (j Job) OutputDir() string {
	return filepath.Join(j.OutputRoot, filepath.Base(j.VideoPath))
}

// BaseName is the frame file prefix
func (j Job) BaseName() string {
	return frames.BaseName(j.VideoPath)
}

// Metadata returns the static frame tags for this job
func (j Job) Metadata(software string) frames.Metadata {
	return frames.Metadata{
		Author:   j.Author,
		Make:     j.Make,
		Model:    j.Model,
		Software: software,
		Zone:     j.Anchor.Zone,
	}
}

// Validate checks every setting and returns the job they describe. All
// problems are reported at once.
func (s *Settings) Validate() (*Job, error) {
	v := &validator{}

	if missing := s.missing(); len(missing) > 0 {
		v.add("settings", fmt.Sprintf("missing %s", joinList(missing)), missing)
	}

	if s.VideoFile != "" && !util.FileExists(s.VideoFile) {
		v.add("paths.video_file", "file not found", s.VideoFile)
	}
	if s.GPSTrackFile != "" && !util.FileExists(s.GPSTrackFile) {
		v.add("paths.gps_track_file", "file not found", s.GPSTrackFile)
	}

	var params sampling.Params
	if s.Timelapse {
		params = sampling.Timelapse{OutputFPS: s.TimelapseFPS}
		v.check("video.timelapse", s.TimelapseFPS, params.Validate())
	} else if s.FrameSampling != 0 {
		params = sampling.FixedInterval{IntervalSeconds: s.FrameSampling}
		v.check("process_settings.frame_sampling", s.FrameSampling, params.Validate())
	}

	if s.FrameHeight < 0 {
		v.add("process_settings.frame_height", "must not be negative", s.FrameHeight)
	}

	anchor := timestamp.Anchor{ClockOffset: s.TimeOffset, Zone: s.RecTimezone}
	if s.StartDatetime != "" {
		start, err := timestamp.ParseStart(s.StartDatetime)
		v.check("video.start_datetime", s.StartDatetime, err)
		anchor.Start = start
	}
	if s.TimeOffset < timestamp.MinClockOffset || s.TimeOffset > timestamp.MaxClockOffset {
		v.add("process_settings.time_offset",
			fmt.Sprintf("must be between %.0f and %.0f seconds", timestamp.MinClockOffset, timestamp.MaxClockOffset),
			s.TimeOffset)
	}
	if s.RecTimezone != "" {
		_, err := timestamp.ParseZone(s.RecTimezone)
		v.check("video.rec_timezone", s.RecTimezone, err)
	}

	if err := v.err(); err != nil {
		return nil, err
	}

	return &Job{
		VideoPath:   s.VideoFile,
		TrackPath:   s.GPSTrackFile,
		OutputRoot:  s.OutputFolder,
		Params:      params,
		FrameHeight: s.FrameHeight,
		Anchor:      anchor,
		Author:      s.Author,
		Make:        s.CameraMaker,
		Model:       s.CameraModel,
	}, nil
}

func (s *Settings) missing() []string {
	var missing []string
	add := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}

	add(s.VideoFile != "", "video_file")
	add(s.GPSTrackFile != "", "gps_track_file")
	add(s.OutputFolder != "", "output_folder")
	add(s.Timelapse || s.FrameSampling != 0, "frame_sampling")
	add(s.StartDatetime != "", "start_datetime")
	add(s.RecTimezone != "", "rec_timezone")
	return missing
}
