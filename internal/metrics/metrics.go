// Package metrics holds the Prometheus instrumentation for the bridge. Each
// concern gets a struct of collectors registered on an injected registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rfid_bridge"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Set bundles every metric group so wiring code can pass one value around.
type Set struct {
	HTTP      *HTTPMetrics
	WebSocket *WebSocketMetrics
	Broker    *BrokerMetrics
	Commands  *CommandMetrics
}

// NewSet registers all metric groups on reg.
func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		HTTP:      NewHTTPMetrics(reg),
		WebSocket: NewWebSocketMetrics(reg),
		Broker:    NewBrokerMetrics(reg),
		Commands:  NewCommandMetrics(reg),
	}
}
