// Package metrics records per-run extraction counters for export through
// the node-exporter textfile collector.
package metrics

import (
	"time"

	"github.com/keagan/geoframes/internal/frames"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the metrics of one run
type Collector struct {
	registry *prometheus.Registry

	FramesPlanned  prometheus.Counter
	FramesWritten  prometheus.Counter
	FramesTagged   prometheus.Counter
	FrameFailures  *prometheus.CounterVec
	GeotagExitCode prometheus.Gauge
	RunDuration    prometheus.Gauge
	LastRun        prometheus.Gauge
}

// New creates a collector on its own registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		FramesPlanned: f.NewCounter(prometheus.CounterOpts{
			Name: "geoframes_frames_planned_total",
			Help: "Frames scheduled by the sampling plan",
		}),
		FramesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "geoframes_frames_written_total",
			Help: "JPEG frames written to the output folder",
		}),
		FramesTagged: f.NewCounter(prometheus.CounterOpts{
			Name: "geoframes_frames_tagged_total",
			Help: "Frames whose timestamp tags were written",
		}),
		FrameFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoframes_frame_failures_total",
			Help: "Frames that failed, by stage",
		}, []string{"stage"}),
		GeotagExitCode: f.NewGauge(prometheus.GaugeOpts{
			Name: "geoframes_geotag_exit_code",
			Help: "Exit code of the geotagging run, -1 when it could not start",
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "geoframes_run_duration_seconds",
			Help: "Wall time of the last extraction run",
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "geoframes_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveReport adds the counts of an extraction report
func (c *Collector) ObserveReport(r *frames.Report) {
	if r == nil {
		return
	}
	c.FramesPlanned.Add(float64(r.Planned))
	c.FramesWritten.Add(float64(r.Written))
	c.FramesTagged.Add(float64(r.Tagged))
	for _, f := range r.Failures {
		c.FrameFailures.WithLabelValues(string(f.Stage)).Inc()
	}
}

// ObserveGeotag records the geotagging exit code
func (c *Collector) ObserveGeotag(exitCode int) {
	c.GeotagExitCode.Set(float64(exitCode))
}

// ObserveRun records the run duration and completion time
func (c *Collector) ObserveRun(d time.Duration) {
	c.RunDuration.Set(d.Seconds())
	c.LastRun.SetToCurrentTime()
}

// WriteTextfile writes all metrics in text exposition format
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
