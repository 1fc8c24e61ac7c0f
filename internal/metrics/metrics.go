// Package metrics records the outcome of a crosswalk run as Prometheus
// gauges and writes them in the text exposition format, for pickup by the
// node_exporter textfile collector:
//   - crosswalk_last_run_timestamp_seconds / crosswalk_last_success_timestamp_seconds
//   - crosswalk_run_duration_seconds, crosswalk_source_bytes
//   - crosswalk_records{outcome}: emitted, comment, wrong_width, malformed
//   - crosswalk_table_rows{table}: finalized rows per format table
//   - crosswalk_run_failed{code}: 1 for the error code of a failed run
//
// A private registry is used so the file only holds run metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/crosswalk/internal/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the gauges of one run.
type Recorder struct {
	registry *prometheus.Registry

	lastRun     prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge
	sourceBytes prometheus.Gauge
	records     *prometheus.GaugeVec
	tableRows   *prometheus.GaugeVec
	failed      *prometheus.GaugeVec
}

// New creates a Recorder with all gauges registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crosswalk_last_run_timestamp_seconds",
			Help: "Unix time the last crosswalk run finished",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crosswalk_last_success_timestamp_seconds",
			Help: "Unix time the last successful crosswalk run finished",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crosswalk_run_duration_seconds",
			Help: "Wall time of the last crosswalk run",
		}),
		sourceBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crosswalk_source_bytes",
			Help: "Size of the downloaded crosswalk",
		}),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crosswalk_records",
				Help: "Source records by cleaning outcome",
			},
			[]string{"outcome"},
		),
		tableRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crosswalk_table_rows",
				Help: "Finalized rows per format table",
			},
			[]string{"table"},
		),
		failed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crosswalk_run_failed",
				Help: "Set to 1 with the error code when the last run failed",
			},
			[]string{"code"},
		),
	}

	r.registry.MustRegister(
		r.lastRun,
		r.lastSuccess,
		r.duration,
		r.sourceBytes,
		r.records,
		r.tableRows,
		r.failed,
	)
	return r
}

// Observe records a finished run. run may be nil when the run failed before
// it started, e.g. because the sink could not be opened.
func (r *Recorder) Observe(run *core.RunInfo, err error) {
	now := time.Now()
	r.lastRun.Set(float64(now.Unix()))

	if run != nil {
		r.duration.Set(now.Sub(run.StartedAt).Seconds())
		r.sourceBytes.Set(float64(run.BytesRead))

		r.records.WithLabelValues("emitted").Set(float64(run.Stats.EmittedRows))
		r.records.WithLabelValues("comment").Set(float64(run.Stats.CommentRows))
		r.records.WithLabelValues("wrong_width").Set(float64(run.Stats.WrongWidth))
		r.records.WithLabelValues("malformed").Set(float64(run.Stats.Malformed))

		for name, n := range run.TableCounts {
			r.tableRows.WithLabelValues(name).Set(float64(n))
		}
	}

	if err != nil {
		r.failed.WithLabelValues(core.MapError(err).Code).Set(1)
		return
	}
	r.lastSuccess.Set(float64(now.Unix()))
}

// WriteTextfile writes the gauges to path. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
