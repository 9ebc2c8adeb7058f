// Package metrics holds the Prometheus collectors for watchers and bulk
// operations.
package metrics

import (
	stdlog "log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private to the module so tests and embedders do not collide
// with the default registry.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// NotificationsReceived counts decoded change notifications before debouncing
	NotificationsReceived = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "shellstore_watcher_notifications_total",
			Help: "Total number of change notifications decoded by watchers",
		},
	)

	// WatcherEvents counts debounced events raised by watchers
	WatcherEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shellstore_watcher_events_total",
			Help: "Total number of debounced watcher events by kind",
		},
		[]string{"kind"},
	)

	// WatchersActive tracks watchers between construction and Close
	WatchersActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "shellstore_watchers_active",
			Help: "Number of live folder watchers",
		},
	)

	// OperationItems counts per-item outcomes of bulk operations
	OperationItems = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shellstore_operation_items_total",
			Help: "Total number of bulk operation items by operation and result",
		},
		[]string{"op", "result"},
	)

	// OperationDuration observes whole PerformAll transactions
	OperationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shellstore_operation_duration_seconds",
			Help:    "Bulk operation transaction duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		},
	)
)

// Handler serves Registry in the Prometheus text format. errorLog may be nil.
func Handler(errorLog *stdlog.Logger) http.Handler {
	opts := promhttp.HandlerOpts{}
	if errorLog != nil {
		opts.ErrorLog = errorLog
	}
	return promhttp.HandlerFor(Registry, opts)
}
