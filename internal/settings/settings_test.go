package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keagan/geoframes/internal/sampling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ride.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[paths]
video_file = "/videos/GH010042.MP4"
gps_track_file = "/tracks/ride.gpx"
output_folder = "/frames"

[process_settings]
frame_sampling = 2
frame_height = 1080
time_offset = -1.5

[video]
timelapse = [false, 5]
start_datetime = 2024-01-01T10:00:00.250
rec_timezone = "+01:00"

[metadata]
author = "Jane Doe"
camera_maker = "GoPro"
camera_model = "Hero 9"
`), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, &Settings{
		VideoFile:     "/videos/GH010042.MP4",
		GPSTrackFile:  "/tracks/ride.gpx",
		OutputFolder:  "/frames",
		FrameSampling: 2,
		FrameHeight:   1080,
		TimeOffset:    -1.5,
		Timelapse:     false,
		TimelapseFPS:  5,
		StartDatetime: "2024-01-01T10:00:00.25",
		RecTimezone:   "+01:00",
		Author:        "Jane Doe",
		CameraMaker:   "GoPro",
		CameraModel:   "Hero 9",
	}, s)
}

func TestParseStartAsString(t *testing.T) {
	s, err := Parse(`
[video]
start_datetime = "2024-01-01T10:00:00.000"
timelapse = [true, 10]
`)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T10:00:00.000", s.StartDatetime)
	assert.True(t, s.Timelapse)
	assert.Equal(t, 10, s.TimelapseFPS)
}

func TestParseTypeErrors(t *testing.T) {
	_, err := Parse(`
[process_settings]
frame_sampling = "fast"
frame_height = 720.5

[video]
timelapse = [1, 5]
start_datetime = 42
`)
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{
		"process_settings.frame_sampling",
		"process_settings.frame_height",
		"video.timelapse",
		"video.start_datetime",
	}, verr.Fields())
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse(`[paths`)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	s := &Settings{
		VideoFile:     touch(t, dir, "GH010042.MP4"),
		GPSTrackFile:  touch(t, dir, "ride.gpx"),
		OutputFolder:  filepath.Join(dir, "frames"),
		FrameSampling: 5,
		TimeOffset:    0.5,
		StartDatetime: "2024-01-01T10:00:00.000",
		RecTimezone:   "+01:00",
		Author:        "Jane Doe",
		CameraMaker:   "GoPro",
		CameraModel:   "Hero 9",
	}

	job, err := s.Validate()
	require.NoError(t, err)

	assert.Equal(t, sampling.FixedInterval{IntervalSeconds: 5}, job.Params)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), job.Anchor.Start)
	assert.Equal(t, 0.5, job.Anchor.ClockOffset)
	assert.Equal(t, "+01:00", job.Anchor.Zone)
	assert.Equal(t, filepath.Join(dir, "frames", "GH010042.MP4"), job.OutputDir())
	assert.Equal(t, "GH010042", job.BaseName())

	meta := job.Metadata("geoframes (v1.0.0)")
	assert.Equal(t, "GoPro", meta.Make)
	assert.Equal(t, "+01:00", meta.Zone)
	assert.Equal(t, "geoframes (v1.0.0)", meta.Software)
}

func TestValidateTimelapse(t *testing.T) {
	dir := t.TempDir()
	s := &Settings{
		VideoFile:     touch(t, dir, "lapse.mp4"),
		GPSTrackFile:  touch(t, dir, "ride.gpx"),
		OutputFolder:  dir,
		Timelapse:     true,
		TimelapseFPS:  5,
		StartDatetime: "2024-01-01 10:00:00",
		RecTimezone:   "-03:30",
	}

	job, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, sampling.Timelapse{OutputFPS: 5}, job.Params)
}

func TestValidateListsMissing(t *testing.T) {
	_, err := (&Settings{}).Validate()
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors(), 1)
	assert.Equal(t,
		"missing video_file, gps_track_file, output_folder, frame_sampling, start_datetime and rec_timezone",
		verr.Errors()[0].Message)
}

func TestValidateAccumulates(t *testing.T) {
	dir := t.TempDir()
	s := &Settings{
		VideoFile:     filepath.Join(dir, "missing.mp4"),
		GPSTrackFile:  touch(t, dir, "ride.gpx"),
		OutputFolder:  dir,
		FrameSampling: 0.1,
		FrameHeight:   -1,
		TimeOffset:    12,
		StartDatetime: "yesterday",
		RecTimezone:   "UTC+1",
	}

	_, err := s.Validate()
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{
		"paths.video_file",
		"process_settings.frame_sampling",
		"process_settings.frame_height",
		"video.start_datetime",
		"process_settings.time_offset",
		"video.rec_timezone",
	}, verr.Fields())
}

func TestValidateTimelapseOutOfRange(t *testing.T) {
	dir := t.TempDir()
	s := &Settings{
		VideoFile:     touch(t, dir, "lapse.mp4"),
		GPSTrackFile:  touch(t, dir, "ride.gpx"),
		OutputFolder:  dir,
		Timelapse:     true,
		TimelapseFPS:  30,
		StartDatetime: "2024-01-01T10:00:00",
		RecTimezone:   "+00:00",
	}

	_, err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video.timelapse")
}

func TestJoinList(t *testing.T) {
	assert.Equal(t, "", joinList(nil))
	assert.Equal(t, "a", joinList([]string{"a"}))
	assert.Equal(t, "a and b", joinList([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", joinList([]string{"a", "b", "c"}))
}
