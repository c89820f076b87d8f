// Package app provides the application service layer.
//
// Relay turns inbound broker messages into viewer envelopes. TopUpService
// validates top-up requests and publishes them as broker commands. Both depend
// on domain interfaces, not on the broker or WebSocket implementations.
package app
