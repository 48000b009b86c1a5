// Package metrics exposes Prometheus collectors for the sync pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_sync_messages_processed_total",
			Help: "Messages processed by terminal ledger result",
		},
		[]string{"result"},
	)

	LLMAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_sync_llm_attempts_total",
			Help: "Extraction attempts sent to the LLM provider",
		},
		[]string{"provider", "outcome"},
	)

	ExtractionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchase_sync_extraction_seconds",
			Help:    "Wall time of one extraction including retries",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		},
		[]string{"provider"},
	)

	PurchasesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_sync_purchases_created_total",
			Help: "Purchase rows created from email",
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_sync_runs_total",
			Help: "Per-user sync runs by status",
		},
		[]string{"status"},
	)
)

// ObserveExtraction records one extraction's latency and attempt count.
func ObserveExtraction(provider string, started time.Time, attempts int, err error) {
	ExtractionLatency.WithLabelValues(provider).Observe(time.Since(started).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMAttempts.WithLabelValues(provider, outcome).Add(float64(attempts))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
