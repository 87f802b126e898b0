package main

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for the screening pipeline
type Metrics struct {
	filesProcessed *prometheus.CounterVec // files fully processed, per logger
	badFiles       *prometheus.CounterVec // files flagged bad during screening, per logger
	badFilenames   *prometheus.CounterVec // filenames with unparsable timestamps, per logger
	samples        *prometheus.CounterVec // finalized samples, per logger/kind/variant
	fileDuration   prometheus.Histogram   // per-file processing wall time
	completeness   *prometheus.GaugeVec   // data completeness percent, per logger/channel
	loggersDone    prometheus.Counter     // loggers finalized
	runElapsed     prometheus.Gauge       // elapsed time of the current run in seconds
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	return &Metrics{
		filesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seascreen_files_processed_total",
			Help: "Raw files fully processed",
		}, []string{"logger"}),
		badFiles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seascreen_bad_files_total",
			Help: "Files that read but failed data screening",
		}, []string{"logger"}),
		badFilenames: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seascreen_bad_filenames_total",
			Help: "Filenames whose embedded timestamp could not be parsed",
		}, []string{"logger"}),
		samples: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seascreen_samples_total",
			Help: "Finalized sample windows",
		}, []string{"logger", "kind", "variant"}),
		fileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "seascreen_file_processing_seconds",
			Help:    "Wall time to read, wrangle and accumulate one file",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		completeness: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "seascreen_data_completeness_percent",
			Help: "Percentage of expected points actually present",
		}, []string{"logger", "channel"}),
		loggersDone: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seascreen_loggers_finalized_total",
			Help: "Loggers that reached the Finalizing state",
		}),
		runElapsed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "seascreen_run_elapsed_seconds",
			Help: "Elapsed wall time of the current run",
		}),
	}
}

// FileProcessed records one fully processed file
func (m *Metrics) FileProcessed(logger string, d time.Duration) {
	if m == nil {
		return
	}
	m.filesProcessed.WithLabelValues(logger).Inc()
	m.fileDuration.Observe(d.Seconds())
}

// BadFile records one bad file
func (m *Metrics) BadFile(logger string) {
	if m == nil {
		return
	}
	m.badFiles.WithLabelValues(logger).Inc()
}

// BadFilename records one unparsable filename
func (m *Metrics) BadFilename(logger string) {
	if m == nil {
		return
	}
	m.badFilenames.WithLabelValues(logger).Inc()
}

// Sample records one finalized sample window
func (m *Metrics) Sample(logger, kind, variant string) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(logger, kind, variant).Inc()
}

// Completeness records a logger's final per-channel completeness
func (m *Metrics) Completeness(logger, channel string, pct float64) {
	if m == nil {
		return
	}
	m.completeness.WithLabelValues(logger, channel).Set(pct)
}

// LoggerFinalized records one finalized logger
func (m *Metrics) LoggerFinalized() {
	if m == nil {
		return
	}
	m.loggersDone.Inc()
}

// Elapsed updates the run elapsed gauge
func (m *Metrics) Elapsed(d time.Duration) {
	if m == nil {
		return
	}
	m.runElapsed.Set(d.Seconds())
}

// ServeMetrics starts the metrics HTTP endpoint in the background
func ServeMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("Prometheus metrics available at http://%s/metrics", listen)
		if err := http.ListenAndServe(listen, mux); err != nil {
			log.Printf("Error serving metrics: %v", err)
		}
	}()
}
