package metrics

import "github.com/prometheus/client_golang/prometheus"

// BrokerMetrics holds Prometheus metrics for the broker link.
type BrokerMetrics struct {
	Connected        prometheus.Gauge
	ConnectionLost   prometheus.Counter
	MessagesReceived *prometheus.CounterVec
	DecodeErrors     *prometheus.CounterVec
	InvalidUTF8      *prometheus.CounterVec
	Publishes        *prometheus.CounterVec
	PublishDuration  prometheus.Histogram
	CircuitState     prometheus.Gauge
	RedisOps         *prometheus.CounterVec
	RedisOpDuration  *prometheus.HistogramVec
}

// NewBrokerMetrics creates and registers broker metrics on the given registry.
func NewBrokerMetrics(reg prometheus.Registerer) *BrokerMetrics {
	m := &BrokerMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "connected",
			Help:      "1 while the broker session is up.",
		}),
		ConnectionLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "connection_lost_total",
			Help:      "Broker connection losses.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "messages_received_total",
			Help:      "Inbound broker messages by topic kind.",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "decode_errors_total",
			Help:      "Inbound broker messages dropped as malformed, by topic kind.",
		}, []string{"kind"}),
		InvalidUTF8: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "invalid_utf8_total",
			Help:      "Inbound broker messages whose invalid UTF-8 was replaced, by topic kind.",
		}, []string{"kind"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "publishes_total",
			Help:      "Outbound publishes by topic kind and status.",
		}, []string{"kind", "status"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "publish_duration_seconds",
			Help:      "Time until the broker acknowledged a publish.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "publish_circuit_state",
			Help:      "Publish circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		RedisOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Redis commands by operation and status.",
		}, []string{"operation", "status"}),
		RedisOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Redis command latency in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.Connected, m.ConnectionLost, m.MessagesReceived, m.DecodeErrors, m.InvalidUTF8, m.Publishes,
		m.PublishDuration, m.CircuitState, m.RedisOps, m.RedisOpDuration,
	)
	return m
}
