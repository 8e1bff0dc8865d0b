// Package metrics records operational counters and timings for the
// pipeline. It exposes a narrow Backend interface with a global, pluggable
// instance that defaults to a no-op, so instrumentation calls are always
// safe whether or not a real backend (Pushgateway, Datadog) is configured.
// Concrete backends live in subpackages and are selected at startup.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by concrete metric sinks.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered data; batch-job backends (Pushgateway) need a
	// call at shutdown.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. A nil argument is ignored.
func SetBackend(b Backend) {
	if b != nil {
		backend = b
	}
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStep counts one pipeline step execution and its latency. Steps are
// "extract", "load", "transform" and the like; err selects the status
// label.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter("dex_step_total", 1, lbls)
	backend.ObserveHistogram("dex_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRecords counts records per kind: "extracted", "failed", "inserted",
// and the per-provenance kinds from the run summary.
func RecordRecords(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("dex_records_total", float64(delta), Labels{"job": job, "kind": kind})
}

// RecordDocuments counts documents per status ("ok", "failed", "skipped").
func RecordDocuments(job, status string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("dex_documents_total", float64(delta), Labels{"job": job, "status": status})
}

// RecordTables counts table pattern identification outcomes ("identified",
// "unidentified").
func RecordTables(job, outcome string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("dex_tables_total", float64(delta), Labels{"job": job, "outcome": outcome})
}
