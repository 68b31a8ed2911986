package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics provides observability for the voice relay.
//
// This interface is optional. If not provided to the relay adapter, a
// no-op implementation is used with zero overhead.
type RelayMetrics interface {
	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// SetRegisteredIdentities updates the count of authenticated
	// identities currently bound to a connection.
	SetRegisteredIdentities(count int)

	// RecordAuth records an authentication attempt.
	//
	// Parameters:
	//   - status: "ok", "rejected" or "displaced"
	RecordAuth(status string)

	// RecordFrameForwarded records an audio frame delivered to a
	// recipient, with its payload size in bytes.
	RecordFrameForwarded(bytes int)

	// RecordFrameDropped records an audio frame that could not be
	// delivered.
	//
	// Parameters:
	//   - reason: "offline", "unauthenticated", "send_failed" or "malformed"
	RecordFrameDropped(reason string)
}

// relayMetrics is the Prometheus implementation of RelayMetrics.
type relayMetrics struct {
	connectionsAccepted  prometheus.Counter
	connectionsClosed    prometheus.Counter
	activeConnections    prometheus.Gauge
	registeredIdentities prometheus.Gauge
	authTotal            *prometheus.CounterVec
	framesForwarded      prometheus.Counter
	bytesForwarded       prometheus.Counter
	framesDropped        *prometheus.CounterVec
}

// NewRelayMetrics creates a new Prometheus-backed RelayMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewRelayMetrics() RelayMetrics {
	if !IsEnabled() {
		return &noopRelayMetrics{}
	}

	reg := GetRegistry()

	return &relayMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "squawk_relay_connections_accepted_total",
				Help: "Total number of websocket connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "squawk_relay_connections_closed_total",
				Help: "Total number of websocket connections closed",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "squawk_relay_active_connections",
				Help: "Current number of open websocket connections",
			},
		),
		registeredIdentities: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "squawk_relay_registered_identities",
				Help: "Current number of authenticated identities bound to a connection",
			},
		),
		authTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "squawk_relay_auth_total",
				Help: "Total number of authentication attempts by status",
			},
			[]string{"status"},
		),
		framesForwarded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "squawk_relay_frames_forwarded_total",
				Help: "Total number of audio frames forwarded to recipients",
			},
		),
		bytesForwarded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "squawk_relay_bytes_forwarded_total",
				Help: "Total audio payload bytes forwarded to recipients",
			},
		),
		framesDropped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "squawk_relay_frames_dropped_total",
				Help: "Total number of audio frames dropped by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *relayMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *relayMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *relayMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *relayMetrics) SetRegisteredIdentities(count int) {
	m.registeredIdentities.Set(float64(count))
}

func (m *relayMetrics) RecordAuth(status string) {
	m.authTotal.WithLabelValues(status).Inc()
}

func (m *relayMetrics) RecordFrameForwarded(bytes int) {
	m.framesForwarded.Inc()
	m.bytesForwarded.Add(float64(bytes))
}

func (m *relayMetrics) RecordFrameDropped(reason string) {
	m.framesDropped.WithLabelValues(reason).Inc()
}

// noopRelayMetrics is used when metrics are disabled.
type noopRelayMetrics struct{}

func (*noopRelayMetrics) RecordConnectionAccepted()   {}
func (*noopRelayMetrics) RecordConnectionClosed()     {}
func (*noopRelayMetrics) SetActiveConnections(int32)  {}
func (*noopRelayMetrics) SetRegisteredIdentities(int) {}
func (*noopRelayMetrics) RecordAuth(string)           {}
func (*noopRelayMetrics) RecordFrameForwarded(int)    {}
func (*noopRelayMetrics) RecordFrameDropped(string)   {}
