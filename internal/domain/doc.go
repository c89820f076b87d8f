// Package domain defines the core bridge types and interfaces.
//
// Topics, inbound events, viewer envelopes and top-up commands live here together
// with the error taxonomy shared by the broker link, the relay and the HTTP layer.
// No transport code - just contracts.
package domain
