package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
)

const AckMessage = "Top-up command sent"

// Ack is returned once a top-up command was handed to the broker.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TopUpService turns top-up requests into broker commands. Every accepted
// request results in exactly one publish; nothing is deduplicated.
type TopUpService struct {
	publisher domain.Publisher
	topic     domain.Topic
	timeout   time.Duration
	metrics   *metrics.CommandMetrics
}

// NewTopUpService creates the service. timeout bounds each publish; zero
// leaves the caller's context as the only limit.
func NewTopUpService(publisher domain.Publisher, topic domain.Topic, timeout time.Duration, m *metrics.CommandMetrics) *TopUpService {
	return &TopUpService{
		publisher: publisher,
		topic:     topic,
		timeout:   timeout,
		metrics:   m,
	}
}

// TopUp validates raw and publishes it. A *domain.ValidationError means the
// request was rejected without publishing; a *domain.BrokerError means the
// publish failed.
func (s *TopUpService) TopUp(ctx context.Context, raw domain.RawTopUp) (Ack, error) {
	req, err := domain.ParseTopUp(raw)
	if err != nil {
		s.metrics.TopUps.WithLabelValues(metrics.OutcomeRejected).Inc()
		return Ack{}, err
	}

	cmd := domain.OutboundCommand{Topic: s.topic, Payload: req}
	payload, err := cmd.Encode()
	if err != nil {
		s.metrics.TopUps.WithLabelValues(metrics.OutcomeFailed).Inc()
		return Ack{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.publisher.Publish(ctx, cmd.Topic, payload); err != nil {
		s.metrics.TopUps.WithLabelValues(metrics.OutcomeFailed).Inc()
		slog.ErrorContext(ctx, "Top-up publish failed", "uid", req.UID, "amount", req.Amount, "error", err)
		return Ack{}, err
	}

	s.metrics.TopUps.WithLabelValues(metrics.OutcomeAccepted).Inc()
	slog.InfoContext(ctx, "Top-up command sent", "uid", req.UID, "amount", req.Amount, "topic", cmd.Topic.String())
	return Ack{Success: true, Message: AckMessage}, nil
}
