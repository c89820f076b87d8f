package metrics

import "github.com/prometheus/client_golang/prometheus"

// Top-up outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// CommandMetrics counts command gateway outcomes.
type CommandMetrics struct {
	TopUps *prometheus.CounterVec
}

// NewCommandMetrics creates and registers command metrics on the given registry.
func NewCommandMetrics(reg prometheus.Registerer) *CommandMetrics {
	m := &CommandMetrics{
		TopUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "topups_total",
			Help:      "Top-up requests by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.TopUps)
	return m
}
