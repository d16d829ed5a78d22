package frames

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/keagan/geoframes/internal/sampling"
	"github.com/keagan/geoframes/internal/timestamp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	width  int
	height int
	seeks  []time.Duration
	failAt map[time.Duration]error
	hook   func(ctx context.Context, at time.Duration)
}

func (s *fakeSource) Frame(ctx context.Context, at time.Duration) (image.Image, error) {
	if s.hook != nil {
		s.hook(ctx, at)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, at)
	if err, ok := s.failAt[at]; ok {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, s.width, s.height)), nil
}

type fakeImages struct {
	mu     sync.Mutex
	files  map[string]image.Rectangle
	failOn map[string]bool
}

func (w *fakeImages) WriteJPEG(path string, img image.Image) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failOn[filepath.Base(path)] {
		return errors.New("disk full")
	}
	if w.files == nil {
		w.files = make(map[string]image.Rectangle)
	}
	w.files[path] = img.Bounds()
	return nil
}

func (w *fakeImages) names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.files))
	for path := range w.files {
		names = append(names, filepath.Base(path))
	}
	sort.Strings(names)
	return names
}

type fakeTags struct {
	mu     sync.Mutex
	tags   map[string]map[string]string
	failOn map[string]bool
	ctxErr []error
}

func (w *fakeTags) WriteTags(ctx context.Context, path string, tags map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctxErr = append(w.ctxErr, ctx.Err())
	if w.failOn[filepath.Base(path)] {
		return errors.New("exiftool: Error writing file")
	}
	if w.tags == nil {
		w.tags = make(map[string]map[string]string)
	}
	w.tags[filepath.Base(path)] = tags
	return nil
}

func testAnchor() timestamp.Anchor {
	return timestamp.Anchor{
		Start: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Zone:  "+01:00",
	}
}

func newJob(t *testing.T, video sampling.Video, params sampling.Params, height int) Job {
	t.Helper()
	plan, err := sampling.BuildPlan(video, params, height)
	require.NoError(t, err)
	return Job{
		Plan:   plan,
		Mapper: timestamp.NewMapper(testAnchor(), plan.FrameInterval),
		Metadata: Metadata{
			Author:   "Jane Doe",
			Make:     "GoPro",
			Model:    "Hero 9",
			Software: "geoframes (vtest)",
			Zone:     "+01:00",
		},
		OutputDir: "/out/ride",
		BaseName:  "ride",
	}
}

var fullHD = sampling.Video{FrameRate: 30, Width: 1920, Height: 1080, TotalFrames: 1800}

func TestRunFixedInterval(t *testing.T) {
	source := &fakeSource{width: 1920, height: 1080}
	images := &fakeImages{}
	tags := &fakeTags{}

	job := newJob(t, fullHD, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), source, tags, images, Options{}).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Planned)
	assert.Equal(t, 12, report.Written)
	assert.Equal(t, 12, report.Tagged)
	assert.Empty(t, report.Failures)
	assert.False(t, report.Canceled)

	names := images.names()
	require.Len(t, names, 12)
	assert.Equal(t, "ride_f00000.jpg", names[0])
	assert.Equal(t, "ride_f00011.jpg", names[11])

	for i, seek := range source.seeks {
		assert.Equal(t, time.Duration(i)*5*time.Second, seek)
	}

	first := tags.tags["ride_f00000.jpg"]
	assert.Equal(t, "2024:01:01 10:00:00", first["DateTimeOriginal"])
	assert.Equal(t, "000", first["SubSecTimeOriginal"])
	assert.Equal(t, "+01:00", first["OffsetTimeOriginal"])
	assert.Equal(t, "Jane Doe, 2024", first["Copyright"])

	last := tags.tags["ride_f00011.jpg"]
	assert.Equal(t, "2024:01:01 10:00:55", last["DateTimeOriginal"])
	assert.Equal(t, "000", last["SubSecTime"])

	for _, bounds := range images.files {
		assert.Equal(t, 1920, bounds.Dx())
		assert.Equal(t, 1080, bounds.Dy())
	}
}

func TestRunTimelapse(t *testing.T) {
	video := sampling.Video{FrameRate: 30, Width: 640, Height: 480, TotalFrames: 90}
	source := &fakeSource{width: 640, height: 480}
	tags := &fakeTags{}

	job := newJob(t, video, sampling.Timelapse{OutputFPS: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), source, tags, &fakeImages{}, Options{}).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 90, report.Written)
	assert.Equal(t, 33*time.Millisecond, source.seeks[1])
	assert.Equal(t, 3*time.Second-33*time.Millisecond, source.seeks[89])

	second := tags.tags["ride_f00001.jpg"]
	assert.Equal(t, "2024:01:01 10:00:00", second["DateTimeOriginal"])
	assert.Equal(t, "200", second["SubSecTimeOriginal"])

	last := tags.tags["ride_f00089.jpg"]
	assert.Equal(t, "2024:01:01 10:00:17", last["DateTimeOriginal"])
	assert.Equal(t, "800", last["SubSecTimeOriginal"])
}

func TestRunSkipsDecodeFailures(t *testing.T) {
	source := &fakeSource{
		width:  1920,
		height: 1080,
		failAt: map[time.Duration]error{15 * time.Second: errors.New("corrupt packet")},
	}
	images := &fakeImages{}
	tags := &fakeTags{}

	job := newJob(t, fullHD, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), source, tags, images, Options{}).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 11, report.Written)
	assert.Equal(t, 11, report.Tagged)
	require.Len(t, report.Failures, 1)

	f := report.Failures[0]
	assert.Equal(t, 3, f.Index)
	assert.Equal(t, StageDecode, f.Stage)
	assert.Equal(t, "2024:01:01 10:00:15.000", f.Timestamp)
	assert.Equal(t, 1, report.Skipped())

	assert.NotContains(t, images.names(), "ride_f00003.jpg")
	assert.Contains(t, images.names(), "ride_f00004.jpg")
	assert.Len(t, source.seeks, 12)
}

func TestRunWriteFailure(t *testing.T) {
	images := &fakeImages{failOn: map[string]bool{"ride_f00000.jpg": true}}
	tags := &fakeTags{}

	job := newJob(t, fullHD, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), &fakeSource{width: 1920, height: 1080}, tags, images, Options{}).
		Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 11, report.Written)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageWrite, report.Failures[0].Stage)
	assert.NotContains(t, tags.tags, "ride_f00000.jpg")
}

func TestRunTagFailureKeepsImage(t *testing.T) {
	images := &fakeImages{}
	tags := &fakeTags{failOn: map[string]bool{"ride_f00007.jpg": true}}

	job := newJob(t, fullHD, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), &fakeSource{width: 1920, height: 1080}, tags, images, Options{}).
		Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Written)
	assert.Equal(t, 11, report.Tagged)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageTag, report.Failures[0].Stage)
	assert.Equal(t, 0, report.Skipped())
	assert.Contains(t, images.names(), "ride_f00007.jpg")
}

func TestRunResizes(t *testing.T) {
	video := sampling.Video{FrameRate: 25, Width: 960, Height: 540, TotalFrames: 50}
	images := &fakeImages{}

	job := newJob(t, video, sampling.FixedInterval{IntervalSeconds: 1}, 480)
	report, err := NewExtractor(zerolog.Nop(), &fakeSource{width: 960, height: 540}, nil, images, Options{}).
		Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 0, report.Tagged)
	for _, bounds := range images.files {
		assert.Equal(t, 853, bounds.Dx())
		assert.Equal(t, 480, bounds.Dy())
	}
}

func TestRunWorkers(t *testing.T) {
	source := &fakeSource{
		width:  1920,
		height: 1080,
		failAt: map[time.Duration]error{
			45 * time.Second: errors.New("corrupt"),
			10 * time.Second: errors.New("corrupt"),
		},
	}
	images := &fakeImages{}
	tags := &fakeTags{}

	var mu sync.Mutex
	seen := map[int]bool{}
	opts := Options{
		Workers: 4,
		OnFrame: func(o Outcome) {
			mu.Lock()
			seen[o.Index] = true
			mu.Unlock()
		},
	}

	job := newJob(t, fullHD, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), source, tags, images, opts).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 10, report.Written)
	assert.Equal(t, 10, report.Tagged)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 2, report.Failures[0].Index)
	assert.Equal(t, 9, report.Failures[1].Index)
	assert.Len(t, seen, 12)

	stamp := tags.tags["ride_f00006.jpg"]
	assert.Equal(t, "2024:01:01 10:00:30", stamp["DateTimeOriginal"])
}

func TestRunCancelCompletesInFlightFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inFlightErr error
	source := &fakeSource{
		width:  1920,
		height: 1080,
		hook: func(frameCtx context.Context, at time.Duration) {
			if at == 20*time.Second {
				cancel()
				inFlightErr = frameCtx.Err()
			}
		},
	}
	images := &fakeImages{}
	tags := &fakeTags{}

	job := newJob(t, fullHD, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), source, tags, images, Options{}).Run(ctx, job)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, inFlightErr)
	assert.True(t, report.Canceled)
	assert.Equal(t, 5, report.Written)
	assert.Equal(t, 5, report.Tagged)
	assert.Contains(t, images.names(), "ride_f00004.jpg")
	assert.NotContains(t, images.names(), "ride_f00005.jpg")
	for _, e := range tags.ctxErr {
		assert.NoError(t, e)
	}
}

func TestRunEmptyPlan(t *testing.T) {
	video := sampling.Video{FrameRate: 30, Width: 1920, Height: 1080, TotalFrames: 60}
	source := &fakeSource{width: 1920, height: 1080}

	job := newJob(t, video, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	report, err := NewExtractor(zerolog.Nop(), source, &fakeTags{}, &fakeImages{}, Options{}).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Planned)
	assert.Equal(t, 0, report.Written)
	assert.Empty(t, source.seeks)
}

func TestRunRequiresOutput(t *testing.T) {
	job := newJob(t, fullHD, sampling.FixedInterval{IntervalSeconds: 5}, 0)
	job.OutputDir = ""

	_, err := NewExtractor(zerolog.Nop(), &fakeSource{}, nil, &fakeImages{}, Options{}).Run(context.Background(), job)
	assert.Error(t, err)
}

func TestMetadataTags(t *testing.T) {
	stamp := timestamp.For(0, timestamp.Anchor{Start: time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), ClockOffset: 1.5}, 1)

	tags := Metadata{Author: "Jane Doe"}.Tags(stamp)
	assert.Equal(t, map[string]string{
		"DateTimeOriginal":   "2024:01:01 00:00:00",
		"SubSecTimeOriginal": "500",
		"SubSecTime":         "500",
		"Artist":             "Jane Doe",
		"Copyright":          "Jane Doe, 2024",
	}, tags)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "ride_f00042.jpg", FileName("ride", 42))
	assert.Equal(t, "ride_f123456.jpg", FileName("ride", 123456))
	assert.Equal(t, filepath.Join("/out/ride", "ride_f*.jpg"), GlobPattern("/out/ride", "ride"))

	assert.Equal(t, "GH010042", BaseName("/videos/GH010042.MP4"))
	assert.Equal(t, "ride", BaseName("ride.2024.mp4"))
	assert.Equal(t, "clip", BaseName("clip"))
	assert.Equal(t, ".hidden", BaseName(".hidden"))
}
