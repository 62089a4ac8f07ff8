// Package metrics exposes Prometheus instrumentation for the relay server.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tutorrelay"

// Metrics owns a private Prometheus registry and its collectors.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	sessionsRequested prometheus.Counter
	sessionRejections *prometheus.CounterVec
	relayMessages     *prometheus.CounterVec
	tutorsDeactivated prometheus.Counter
	liveConnections   *prometheus.GaugeVec
	journalDropped    prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		sessionsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_requested_total",
			Help:      "Sessions created after passing availability checks",
		}),
		sessionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_rejections_total",
			Help:      "Session requests rejected, by reason code",
		}, []string{"reason"}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Real-time relay frames by type and outcome",
		}, []string{"type", "outcome"}),
		tutorsDeactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tutors_deactivated_total",
			Help:      "Tutors deactivated by the cutoff sweeper",
		}),
		liveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Registered real-time connections by role",
		}, []string{"role"}),
		journalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_dropped_total",
			Help:      "Audit records dropped because the journal queue was full",
		}),
	}

	registry.MustRegister(
		m.requestDuration,
		m.requestTotal,
		m.sessionsRequested,
		m.sessionRejections,
		m.relayMessages,
		m.tutorsDeactivated,
		m.liveConnections,
		m.journalDropped,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// SessionRequested counts a created session.
func (m *Metrics) SessionRequested() {
	if m == nil {
		return
	}
	m.sessionsRequested.Inc()
}

// SessionRejected counts a refused session request by error code.
func (m *Metrics) SessionRejected(reason string) {
	if m == nil {
		return
	}
	m.sessionRejections.WithLabelValues(reason).Inc()
}

// RelayMessage counts a relay attempt of frameType with its outcome.
func (m *Metrics) RelayMessage(frameType, outcome string) {
	if m == nil {
		return
	}
	m.relayMessages.WithLabelValues(frameType, outcome).Inc()
}

// TutorsDeactivated adds n sweeper deactivations.
func (m *Metrics) TutorsDeactivated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tutorsDeactivated.Add(float64(n))
}

// SetLiveConnections sets the number of registered connections for role.
func (m *Metrics) SetLiveConnections(role string, n int) {
	if m == nil {
		return
	}
	m.liveConnections.WithLabelValues(role).Set(float64(n))
}

// JournalDropped counts an audit record lost to a full queue.
func (m *Metrics) JournalDropped() {
	if m == nil {
		return
	}
	m.journalDropped.Inc()
}
