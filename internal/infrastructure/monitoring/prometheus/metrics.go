package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConfGenMetrics holds the metrics of conformer generation runs and the
// worker pipeline around them.
type ConfGenMetrics struct {
	// Generator
	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	OutputConformers     *prometheus.HistogramVec
	FragmentCombinations prometheus.Counter
	SampledConformers    prometheus.Counter
	ActiveRuns           prometheus.Gauge

	// Worker pipeline
	JobsTotal           *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	CacheAccess         *prometheus.CounterVec
	StorageUploadsTotal *prometheus.CounterVec
	StorageUploadBytes  prometheus.Observer
	MessagesPublished   *prometheus.CounterVec
}

var (
	DefaultRunDurationBuckets = []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 1800}
	DefaultConformerBuckets   = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000}
	DefaultSizeBuckets        = []float64{1e3, 1e4, 1e5, 1e6, 1e7, 1e8}
)

// NewConfGenMetrics registers all metrics on c. Calling it twice on one
// collector shares the series.
func NewConfGenMetrics(c *Collector) *ConfGenMetrics {
	return &ConfGenMetrics{
		RunsTotal:            c.counter("runs_total", "Conformer generation runs by mode and return code", "mode", "status"),
		RunDuration:          c.histogram("run_duration_seconds", "Conformer generation run duration", DefaultRunDurationBuckets, "mode"),
		OutputConformers:     c.histogram("output_conformers", "Conformers returned per run", DefaultConformerBuckets, "mode"),
		FragmentCombinations: c.counter("fragment_combinations_total", "Fragment conformer combinations assembled").WithLabelValues(),
		SampledConformers:    c.counter("sampled_conformers_total", "Stochastic embedding samples drawn").WithLabelValues(),
		ActiveRuns:           c.gauge("active_runs", "Runs currently in progress").WithLabelValues(),

		JobsTotal:           c.counter("jobs_total", "Worker jobs processed", "outcome"),
		JobDuration:         c.histogram("job_duration_seconds", "Worker job duration including I/O", DefaultRunDurationBuckets, "outcome"),
		CacheAccess:         c.counter("cache_requests_total", "Result cache lookups", "cache", "result"),
		StorageUploadsTotal: c.counter("storage_uploads_total", "Result objects uploaded", "status"),
		StorageUploadBytes:  c.histogram("storage_upload_bytes", "Uploaded result object size", DefaultSizeBuckets).WithLabelValues(),
		MessagesPublished:   c.counter("messages_published_total", "Result messages published", "topic", "status"),
	}
}

// ObserveRun records one finished generator run.
func (m *ConfGenMetrics) ObserveRun(mode, status string, elapsed time.Duration, conformers int) {
	m.RunsTotal.WithLabelValues(mode, status).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.OutputConformers.WithLabelValues(mode).Observe(float64(conformers))
}

// AddFragmentCombinations counts assembled fragment conformer tuples.
func (m *ConfGenMetrics) AddFragmentCombinations(n int) {
	if n > 0 {
		m.FragmentCombinations.Add(float64(n))
	}
}

func (m *ConfGenMetrics) AddSampledConformers(n int) {
	if n > 0 {
		m.SampledConformers.Add(float64(n))
	}
}

// TrackRun increments the active run gauge and returns its release.
func (m *ConfGenMetrics) TrackRun() func() {
	m.ActiveRuns.Inc()
	return m.ActiveRuns.Dec
}

func (m *ConfGenMetrics) ObserveJob(outcome string, elapsed time.Duration) {
	m.JobsTotal.WithLabelValues(outcome).Inc()
	m.JobDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *ConfGenMetrics) RecordCacheAccess(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheAccess.WithLabelValues(cache, result).Inc()
}

func (m *ConfGenMetrics) RecordUpload(size int64, err error) {
	if err != nil {
		m.StorageUploadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.StorageUploadsTotal.WithLabelValues("ok").Inc()
	m.StorageUploadBytes.Observe(float64(size))
}

func (m *ConfGenMetrics) RecordPublish(topic string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesPublished.WithLabelValues(topic, status).Inc()
}

//Personal.AI order the ending
