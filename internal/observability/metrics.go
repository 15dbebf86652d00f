// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Bid metrics
	BidsAccepted  prometheus.Counter
	BidsRejected  *prometheus.CounterVec
	BidsConfirmed prometheus.Counter

	// Auction metrics
	AuctionsEnded prometheus.Counter
	OpenAuctions  prometheus.Gauge

	// Delivery metrics
	EventsDropped *prometheus.CounterVec
	WSClients     prometheus.Gauge

	// Latency metrics
	BidProcessingLatency     prometheus.Histogram
	ConfirmationLatency      prometheus.Histogram
	WatcherReconnects        prometheus.Counter
	WatcherMessagesProcessed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "auction_engine"
	}

	return &Metrics{
		BidsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "accepted_total",
			Help:      "Total number of on-chain bids accepted",
		}),
		BidsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "rejected_total",
			Help:      "Total number of on-chain bids rejected, by reason",
		}, []string{"reason"}),
		BidsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "confirmed_total",
			Help:      "Total number of bids whose transactions reached confirmation depth",
		}),
		AuctionsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auctions",
			Name:      "ended_total",
			Help:      "Total number of auctions that reached their end time",
		}),
		OpenAuctions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auctions",
			Name:      "open",
			Help:      "Number of auctions currently accepting bids",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped instead of processed, by component",
		}, []string{"component"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "ws_clients",
			Help:      "Number of connected websocket clients",
		}),
		BidProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "processing_duration_seconds",
			Help:      "Time from bid dequeue to decision applied",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bids",
			Name:      "confirmation_duration_seconds",
			Help:      "Time from bid detection to confirmation depth",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		WatcherReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "reconnects_total",
			Help:      "Total number of node websocket reconnect attempts",
		}),
		WatcherMessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "messages_processed_total",
			Help:      "Total number of node notifications processed",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// The methods below satisfy the engine's metrics sink.

func (m *Metrics) IncBidsAccepted() {
	m.BidsAccepted.Inc()
}

func (m *Metrics) IncBidsRejected(reason string) {
	m.BidsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncBidsConfirmed() {
	m.BidsConfirmed.Inc()
}

func (m *Metrics) IncAuctionsEnded() {
	m.AuctionsEnded.Inc()
}

func (m *Metrics) IncEventsDropped(component string) {
	m.EventsDropped.WithLabelValues(component).Inc()
}

func (m *Metrics) ObserveBidProcessing(d time.Duration) {
	m.BidProcessingLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveConfirmationLatency(d time.Duration) {
	m.ConfirmationLatency.Observe(d.Seconds())
}

func (m *Metrics) SetOpenAuctions(n int) {
	m.OpenAuctions.Set(float64(n))
}
