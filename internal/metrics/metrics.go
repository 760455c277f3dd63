// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsTotal         *prometheus.CounterVec
	retryAttemptsTotal *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	browserRestarts    prometheus.Counter
	pagesFetchedTotal  *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapleads_items_total",
				Help: "Work items processed, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)
		retryAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapleads_retry_attempts_total",
				Help: "Per-item retry attempts, labeled by stage.",
			},
			[]string{"stage"},
		)
		stageDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mapleads_stage_duration_seconds",
				Help:    "Wall-clock duration of completed stage runs.",
				Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400},
			},
			[]string{"stage"},
		)
		browserRestarts = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mapleads_browser_restarts_total",
				Help: "Headless browser restarts triggered by retries or recycling.",
			},
		)
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapleads_pages_fetched_total",
				Help: "Pages fetched during enrichment, labeled by mode (static or rendered).",
			},
			[]string{"mode"},
		)
	})
}

// ObserveItem records one finished work item.
func ObserveItem(stage, outcome string) {
	if itemsTotal != nil {
		itemsTotal.WithLabelValues(stage, outcome).Inc()
	}
}

// ObserveRetry records one retry attempt.
func ObserveRetry(stage string) {
	if retryAttemptsTotal != nil {
		retryAttemptsTotal.WithLabelValues(stage).Inc()
	}
}

// ObserveStageDuration records a completed stage run.
func ObserveStageDuration(stage string, d time.Duration) {
	if stageDuration != nil {
		stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// ObserveBrowserRestart records a browser restart.
func ObserveBrowserRestart() {
	if browserRestarts != nil {
		browserRestarts.Inc()
	}
}

// ObservePageFetch records one enrichment page fetch.
func ObservePageFetch(mode string) {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.WithLabelValues(mode).Inc()
	}
}
