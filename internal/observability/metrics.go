package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	chatConnectionsTotal  *prometheus.CounterVec
	chatActiveSessions    prometheus.Gauge
	chatMessagesSentTotal *prometheus.CounterVec
	fanoutDroppedTotal    prometheus.Counter
	votesToggledTotal     *prometheus.CounterVec
	sweeperFloatedTotal   prometheus.Counter
	sweeperFailuresTotal  prometheus.Counter
	sweeperDeletedTotal   prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		chatConnectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Chat websocket connection attempts by outcome.",
		}, []string{"result"})

		chatActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Chat sessions currently joined to a group on this node.",
		})

		chatMessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Chat messages persisted, by entry point.",
		}, []string{"source"})

		fanoutDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fanout_dropped_total",
			Help: "Payloads dropped because a session inbox was full.",
		})

		votesToggledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "votes_toggled_total",
			Help: "Vote toggles by target kind and resulting action.",
		}, []string{"target", "action"})

		sweeperFloatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_posts_floated_total",
			Help: "Comments floated by the expiry sweeper.",
		})

		sweeperDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_posts_deleted_total",
			Help: "Expired posts deleted by the expiry sweeper.",
		})

		sweeperFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_failures_total",
			Help: "Posts whose sweep transaction failed and will be retried.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			chatConnectionsTotal,
			chatActiveSessions,
			chatMessagesSentTotal,
			fanoutDroppedTotal,
			votesToggledTotal,
			sweeperFloatedTotal,
			sweeperDeletedTotal,
			sweeperFailuresTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ChatConnections counts websocket attempts labelled joined, unauthorized, forbidden, not_found or error.
func ChatConnections() *prometheus.CounterVec {
	RegisterMetrics()
	return chatConnectionsTotal
}

func ChatActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return chatActiveSessions
}

// ChatMessagesSent counts persisted messages labelled websocket or rest.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSentTotal
}

func FanoutDropped() prometheus.Counter {
	RegisterMetrics()
	return fanoutDroppedTotal
}

// VotesToggled counts toggles labelled by target kind and insert, delete or flip.
func VotesToggled() *prometheus.CounterVec {
	RegisterMetrics()
	return votesToggledTotal
}

func SweeperFloated() prometheus.Counter {
	RegisterMetrics()
	return sweeperFloatedTotal
}

func SweeperDeleted() prometheus.Counter {
	RegisterMetrics()
	return sweeperDeletedTotal
}

func SweeperFailures() prometheus.Counter {
	RegisterMetrics()
	return sweeperFailuresTotal
}
