// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	relayItemsTotal           *prometheus.CounterVec
	relayBatchesTotal         *prometheus.CounterVec
	relayActiveBatches        prometheus.Gauge
	extractionDurationSeconds *prometheus.HistogramVec
	relayEventsPublishedTotal *prometheus.CounterVec
	botCommandsTotal          *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		relayItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_items_total",
				Help: "Items processed by the relay pipeline, labeled by outcome and reason.",
			},
			[]string{"outcome", "reason"},
		)

		relayBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_batches_total",
				Help: "Batches finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		relayActiveBatches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_active_batches",
				Help: "Number of batches currently running.",
			},
		)

		extractionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_extraction_duration_seconds",
				Help:    "Latency of extraction service calls, labeled by outcome.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 180},
			},
			[]string{"outcome"},
		)

		relayEventsPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_published_total",
				Help: "Relay events handed to downstream publishers, labeled by status.",
			},
			[]string{"status"},
		)

		botCommandsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_bot_commands_total",
				Help: "Bot commands received, labeled by command.",
			},
			[]string{"command"},
		)
	})
}

// Handler returns an http.Handler exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem counts one processed item.
func ObserveItem(outcome, reason string) {
	Init()
	relayItemsTotal.WithLabelValues(outcome, reason).Inc()
}

// ObserveBatch counts one finished batch.
func ObserveBatch(status string) {
	Init()
	relayBatchesTotal.WithLabelValues(status).Inc()
}

// IncActiveBatches increments the running batches gauge.
func IncActiveBatches() {
	Init()
	relayActiveBatches.Inc()
}

// DecActiveBatches decrements the running batches gauge.
func DecActiveBatches() {
	Init()
	relayActiveBatches.Dec()
}

// ObserveExtraction records the duration of one extraction call.
func ObserveExtraction(outcome string, d time.Duration) {
	Init()
	extractionDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObservePublish counts delivered and failed relay events.
func ObservePublish(delivered, failed int) {
	Init()
	if delivered > 0 {
		relayEventsPublishedTotal.WithLabelValues("delivered").Add(float64(delivered))
	}
	if failed > 0 {
		relayEventsPublishedTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// ObserveCommand counts one bot command.
func ObserveCommand(command string) {
	Init()
	botCommandsTotal.WithLabelValues(command).Inc()
}
