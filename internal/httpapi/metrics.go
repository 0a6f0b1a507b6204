package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eternalmod"

// Metrics bundles the Prometheus collectors for the HTTP API and the bot
// pipeline. Every method is safe on a nil receiver so components can run
// without instrumentation.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wsClients       prometheus.Gauge
	sseClients      prometheus.Gauge
	streamClients   prometheus.Gauge
	streamDrops     *prometheus.CounterVec
	rateLimited     prometheus.Counter
	messagesSent    *prometheus.CounterVec
	dbErrors        *prometheus.CounterVec
	eventsRecorded  *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	mediaAttempts   *prometheus.CounterVec
	updates         *prometheus.CounterVec
	cacheEntries    prometheus.Gauge
	cacheEvictions  prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests received",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Current connected WebSocket clients",
		}),
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_clients",
			Help:      "Current connected SSE clients",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Live subscriptions registered with the stream hub",
		}),
		streamDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_drops_total",
			Help:      "Events not delivered to live subscribers",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Number of HTTP requests rejected due to rate limiting",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_sent_total",
			Help:      "Number of events written to live clients",
		}, []string{"transport"}),
		dbErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Number of event store errors",
		}, []string{"op"}),
		eventsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_recorded_total",
			Help:      "Edit and delete events recorded",
		}, []string{"type"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent to connection owners",
		}, []string{"kind"}),
		mediaAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_attempts_total",
			Help:      "Media delivery attempts by path and result",
		}, []string{"path", "result"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates handled by kind and outcome",
		}, []string{"kind", "outcome"}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Message snapshots held after the last sweep",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Snapshots evicted by the retention sweep",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.wsClients,
		m.sseClients,
		m.streamClients,
		m.streamDrops,
		m.rateLimited,
		m.messagesSent,
		m.dbErrors,
		m.eventsRecorded,
		m.notifications,
		m.mediaAttempts,
		m.updates,
		m.cacheEntries,
		m.cacheEvictions,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records timing and status information.
func (m *Metrics) ObserveRequest(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

// IncWSClients adjusts the WebSocket client gauge by delta.
func (m *Metrics) IncWSClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

// IncSSEClients adjusts the SSE client gauge by delta.
func (m *Metrics) IncSSEClients(delta float64) {
	if m == nil {
		return
	}
	m.sseClients.Add(delta)
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// IncMessagesSent increments the sent counter for a transport.
func (m *Metrics) IncMessagesSent(transport string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(transport).Inc()
}

// StreamDropped implements stream.Observer.
func (m *Metrics) StreamDropped(reason string) {
	if m == nil {
		return
	}
	m.streamDrops.WithLabelValues(reason).Inc()
}

// StreamClients implements stream.Observer.
func (m *Metrics) StreamClients(n int) {
	if m == nil {
		return
	}
	m.streamClients.Set(float64(n))
}

// EventRecorded implements eventlog.Metrics.
func (m *Metrics) EventRecorded(typ string) {
	if m == nil {
		return
	}
	m.eventsRecorded.WithLabelValues(typ).Inc()
}

// DBError implements eventlog.Metrics.
func (m *Metrics) DBError(op string) {
	if m == nil {
		return
	}
	m.dbErrors.WithLabelValues(op).Inc()
}

// Notification implements reconcile.Metrics.
func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// MediaAttempt implements media.Observer.
func (m *Metrics) MediaAttempt(path string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.mediaAttempts.WithLabelValues(path, result).Inc()
}

// Update implements bot.Metrics.
func (m *Metrics) Update(kind, outcome string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind, outcome).Inc()
}

// CacheSwept matches cache.SweepObserver.
func (m *Metrics) CacheSwept(evicted, remaining int) {
	if m == nil {
		return
	}
	m.cacheEvictions.Add(float64(evicted))
	m.cacheEntries.Set(float64(remaining))
}
