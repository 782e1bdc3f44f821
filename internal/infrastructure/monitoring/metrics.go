package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, so core packages can run without instrumentation.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Module metrics
	ModulesActive prometheus.Gauge
	ModuleLoads   *prometheus.CounterVec

	// Invocation metrics
	Invocations        *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec

	// Host request metrics
	HostRequests        *prometheus.CounterVec
	HostRequestDuration *prometheus.HistogramVec

	// Challenge metrics
	Challenges *prometheus.CounterVec

	// Guest log metrics
	GuestLogs *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	ActiveModules     int64   `json:"activeModules"`
	TotalInvocations  int64   `json:"totalInvocations"`
	FailedInvocations int64   `json:"failedInvocations"`
	TotalHostRequests int64   `json:"totalHostRequests"`
	TotalDuration     float64 `json:"totalDurationSeconds"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a new metrics collector registered with reg.
// Tests pass prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "HTTP API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_response_size_bytes",
				Help:    "HTTP API response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Module metrics
		ModulesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_modules_active",
				Help: "Number of loaded module handles",
			},
		),
		ModuleLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_module_loads_total",
				Help: "Total number of module load attempts",
			},
			[]string{"outcome"},
		),

		// Invocation metrics
		Invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_invocations_total",
				Help: "Total number of provider operation invocations",
			},
			[]string{"operation", "outcome"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_invocation_duration_seconds",
				Help:    "Provider operation duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		// Host request metrics
		HostRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_host_requests_total",
				Help: "Total number of network requests issued by guest code",
			},
			[]string{"method", "status"},
		),
		HostRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_host_request_duration_seconds",
				Help:    "Guest network request duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),

		// Challenge metrics
		Challenges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_challenges_total",
				Help: "Total number of interactive challenge resolutions",
			},
			[]string{"outcome"},
		),

		// Guest log metrics
		GuestLogs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_guest_log_lines_total",
				Help: "Total number of log lines written by guest code",
			},
			[]string{"level"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_ws_connections",
				Help: "Number of connected challenge solvers",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	// System metrics
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordModuleLoad records a load attempt; outcome is "success" or an error kind
func (m *Metrics) RecordModuleLoad(outcome string) {
	if m == nil {
		return
	}
	m.ModuleLoads.WithLabelValues(outcome).Inc()
}

// SetModulesActive sets the number of loaded modules
func (m *Metrics) SetModulesActive(count int) {
	if m == nil {
		return
	}
	m.ModulesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveModules = int64(count)
	m.mu.Unlock()
}

// RecordInvocation records a provider operation; outcome is "success" or an error kind
func (m *Metrics) RecordInvocation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(operation, outcome).Inc()
	m.InvocationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalInvocations++
	m.snapshot.TotalDuration += duration.Seconds()
	if outcome != OutcomeSuccess {
		m.snapshot.FailedInvocations++
	}
	m.mu.Unlock()
}

// RecordHostRequest records a guest network request. status is a status
// class such as "2xx", or an error kind when no response was produced.
func (m *Metrics) RecordHostRequest(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HostRequests.WithLabelValues(method, status).Inc()
	m.HostRequestDuration.WithLabelValues(method).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalHostRequests++
	m.mu.Unlock()
}

// RecordChallenge records a challenge resolution outcome
func (m *Metrics) RecordChallenge(outcome string) {
	if m == nil {
		return
	}
	m.Challenges.WithLabelValues(outcome).Inc()
}

// RecordGuestLog records a guest log line
func (m *Metrics) RecordGuestLog(level string) {
	if m == nil {
		return
	}
	m.GuestLogs.WithLabelValues(level).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
