package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the Prometheus collectors updated by the relay.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	TotalConnections  prometheus.Counter
	MessagesReceived  prometheus.Counter
	Deliveries        prometheus.Counter
	DroppedDeliveries prometheus.Counter
}

// NewMetrics creates the relay collectors and registers them on reg.
// A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Number of peers currently registered.",
		}),
		TotalConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Number of peers registered since start.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Number of inbound messages handed to the broadcaster.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Number of messages enqueued on a recipient's outbound channel.",
		}),
		DroppedDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_deliveries_dropped_total",
			Help: "Number of deliveries dropped because the recipient's channel was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ActiveConnections,
			m.TotalConnections,
			m.MessagesReceived,
			m.Deliveries,
			m.DroppedDeliveries,
		)
	}
	return m
}
