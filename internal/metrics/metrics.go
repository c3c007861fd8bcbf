// Package metrics records operational metrics for layer ingest without tying
// the pipeline to a metrics system.
//
// A process-wide Backend defaults to a no-op, so stages can always record.
// Concrete systems live in subpackages (prompush, datadog) and are installed
// by the CLI with SetBackend.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal    = "geoetl_step_total"
	StepDuration = "geoetl_step_duration_seconds"
	RecordsTotal = "geoetl_records_total"
	LayersTotal  = "geoetl_layers_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a latency/duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and outcome of one pipeline stage.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds in use:
//   - "processed"
//   - "duplicates_dropped"
//   - "collisions_merged"
//   - "loaded"
//   - "locality_members"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordLayer counts one finished layer by status ("loaded", "skipped",
// "failed").
func RecordLayer(job, level, status string) {
	backend.IncCounter(LayersTotal, 1, Labels{
		"job":    job,
		"level":  level,
		"status": status,
	})
}
