package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for viewer connections.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	Broadcasts          prometheus.Counter
	MessagesQueued      prometheus.Counter
	SlowClientsEvicted  prometheus.Counter
	SendFailures        prometheus.Counter
	PingFailures        prometheus.Counter
	SendDuration        prometheus.Histogram
	RejectedConnections *prometheus.CounterVec
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of registered viewer connections.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcasts_total",
			Help:      "Total number of envelopes fanned out to viewers.",
		}),
		MessagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_queued_total",
			Help:      "Total number of per-connection messages queued for sending.",
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_clients_evicted_total",
			Help:      "Connections removed because their send buffer was full.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "send_failures_total",
			Help:      "Connections removed after a failed write.",
		}),
		PingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "ping_failures_total",
			Help:      "Failed keepalive pings.",
		}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "send_duration_seconds",
			Help:      "Time spent writing one message to a viewer.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		RejectedConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_connections_total",
			Help:      "Viewer connections rejected before registration, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.ActiveConnections, m.Broadcasts, m.MessagesQueued, m.SlowClientsEvicted,
		m.SendFailures, m.PingFailures, m.SendDuration, m.RejectedConnections,
	)
	return m
}
