// ABOUTME: Prometheus instrumentation for the hub: connections, routing,
// ABOUTME: evictions, and backend failures. All methods are nil-safe.

package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the hub's Prometheus collectors. A nil *Metrics disables
// instrumentation entirely, so the service never branches on config.
type Metrics struct {
	connectedAgents  prometheus.Gauge
	envelopesRouted  *prometheus.CounterVec
	disconnects      *prometheus.CounterVec
	evictions        prometheus.Counter
	handoffs         prometheus.Counter
	protocolErrors   prometheus.Counter
	backendErrors    prometheus.Counter
	deliveryFailures prometheus.Counter
}

// NewMetrics creates and registers the hub collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectedAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agenthub_connected_agents",
			Help: "Number of currently connected agents.",
		}),
		envelopesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenthub_envelopes_routed_total",
			Help: "Inbound envelopes dispatched, by message type.",
		}, []string{"type"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenthub_disconnects_total",
			Help: "Agent disconnects, by reason.",
		}, []string{"reason"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_evictions_total",
			Help: "Agents evicted by the liveness monitor.",
		}),
		handoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_handoffs_delivered_total",
			Help: "Handoff requests delivered to a target agent.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_protocol_errors_total",
			Help: "Malformed or unknown-type envelopes dropped.",
		}),
		backendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_backend_errors_total",
			Help: "Capability backend call failures, including timeouts.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_delivery_failures_total",
			Help: "Envelopes that could not be written to a connection.",
		}),
	}
	reg.MustRegister(
		m.connectedAgents, m.envelopesRouted, m.disconnects, m.evictions,
		m.handoffs, m.protocolErrors, m.backendErrors, m.deliveryFailures,
	)
	return m
}

func (m *Metrics) agentConnected() {
	if m == nil {
		return
	}
	m.connectedAgents.Inc()
}

func (m *Metrics) agentDisconnected(reason string) {
	if m == nil {
		return
	}
	m.connectedAgents.Dec()
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) agentEvicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) envelopeRouted(msgType string) {
	if m == nil {
		return
	}
	m.envelopesRouted.WithLabelValues(msgType).Inc()
}

func (m *Metrics) handoffDelivered() {
	if m == nil {
		return
	}
	m.handoffs.Inc()
}

func (m *Metrics) protocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

func (m *Metrics) backendError() {
	if m == nil {
		return
	}
	m.backendErrors.Inc()
}

func (m *Metrics) deliveryFailed() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}
