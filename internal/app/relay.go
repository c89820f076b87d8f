package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"unicode/utf8"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
	"github.com/Amani-Ishimwe/RFID/internal/platform/correlation"
)

// Relay forwards every well-formed inbound message to all viewers, wrapped in
// an Envelope. Malformed payloads are dropped and reported.
type Relay struct {
	broadcaster domain.Broadcaster
	metrics     *metrics.BrokerMetrics
	onError     func(error)
}

// NewRelay creates a relay. onError may be nil.
func NewRelay(broadcaster domain.Broadcaster, m *metrics.BrokerMetrics, onError func(error)) *Relay {
	return &Relay{
		broadcaster: broadcaster,
		metrics:     m,
		onError:     onError,
	}
}

// HandleMessage is a domain.MessageHandler. It never blocks on viewers and
// never fails upward.
//
// Invalid UTF-8 sequences are replaced with U+FFFD before decoding, so every
// frame sent to viewers is valid text.
func (r *Relay) HandleMessage(event domain.InboundEvent) {
	ctx := correlation.WithID(context.Background(), correlation.NewID())
	topic := event.Topic

	payload := event.Payload
	if !utf8.Valid(payload) {
		r.metrics.InvalidUTF8.WithLabelValues(topic.Kind()).Inc()
		slog.WarnContext(ctx, "Replacing invalid UTF-8 in broker message", "topic", topic.String())
		payload = bytes.ToValidUTF8(payload, []byte(string(utf8.RuneError)))
	}

	var data json.RawMessage
	if err := json.Unmarshal(payload, &data); err != nil {
		r.reject(ctx, &domain.DecodeError{Topic: topic, Err: err})
		return
	}

	msg, err := json.Marshal(domain.Envelope{Topic: topic, Data: data})
	if err != nil {
		r.reject(ctx, &domain.DecodeError{Topic: topic, Err: err})
		return
	}

	slog.DebugContext(ctx, "Relaying message", "topic", topic.String(), "bytes", len(msg))
	r.broadcaster.Broadcast(msg)
}

func (r *Relay) reject(ctx context.Context, err *domain.DecodeError) {
	slog.WarnContext(ctx, "Dropping malformed broker message", "topic", err.Topic.String(), "error", err.Err)
	r.metrics.DecodeErrors.WithLabelValues(err.Topic.Kind()).Inc()
	if r.onError != nil {
		r.onError(err)
	}
}
