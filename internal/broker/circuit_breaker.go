package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
)

// BreakerOptions tunes the publish circuit breaker.
type BreakerOptions struct {
	FailureThreshold uint
	Delay            time.Duration
	Metrics          *metrics.BrokerMetrics
	Logger           *slog.Logger
}

// CircuitBreakerLink wraps a Link so that sustained publish failures make
// further publishes fail fast with circuitbreaker.ErrOpen until the breaker
// half-opens. Everything else passes straight through.
type CircuitBreakerLink struct {
	Link
	cb circuitbreaker.CircuitBreaker[any]
}

// NewCircuitBreakerLink creates a breaker that opens after FailureThreshold
// consecutive publish failures and retries after Delay.
func NewCircuitBreakerLink(link Link, opts BreakerOptions) *CircuitBreakerLink {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(opts.FailureThreshold).
		WithDelay(opts.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			opts.Logger.Warn("Circuit breaker state changed",
				"component", "broker",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if opts.Metrics != nil {
				opts.Metrics.CircuitState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerLink{Link: link, cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (l *CircuitBreakerLink) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	if !l.cb.TryAcquirePermit() {
		return &domain.BrokerError{Op: domain.OpPublish, Topic: topic, Err: circuitbreaker.ErrOpen}
	}

	err := l.Link.Publish(ctx, topic, payload)
	switch {
	case err == nil:
		l.cb.RecordSuccess()
	case errors.Is(err, context.Canceled):
		// Caller cancellation is not a broker failure.
		l.cb.RecordSuccess()
	default:
		l.cb.RecordError(err)
	}
	return err
}

// State returns the breaker state.
func (l *CircuitBreakerLink) State() circuitbreaker.State {
	return l.cb.State()
}
