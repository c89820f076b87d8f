package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	"github.com/Amani-Ishimwe/RFID/internal/metrics"
	"github.com/Amani-Ishimwe/RFID/internal/platform/retry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Link is one outbound broker session.
type Link interface {
	Subscribe(ctx context.Context, topics ...domain.Topic) error
	Publish(ctx context.Context, topic domain.Topic, payload []byte) error
	OnMessage(handler domain.MessageHandler)
	IsConnected() bool
	Close() error
}

// Options configures Connect.
type Options struct {
	URL             string
	ClientID        string
	Username        string
	Password        string
	QoS             byte
	ConnectTimeout  time.Duration
	ConnectAttempts int
	InitialBackoff  time.Duration
	Metrics         *metrics.BrokerMetrics
	Logger          *slog.Logger
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	maxBackoff            = 5 * time.Second
	clientIDPrefix        = "card-bridge-"
)

func (o *Options) applyDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.ConnectAttempts < 1 {
		o.ConnectAttempts = 1
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.ClientID == "" {
		o.ClientID = clientIDPrefix + uuid.NewString()[:8]
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewBrokerMetrics(prometheus.NewRegistry())
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type dialFunc func(ctx context.Context, u *url.URL, opts Options) (Link, error)

// Connect opens a broker session, retrying the initial connect up to
// opts.ConnectAttempts times. Every failure is returned as a
// *domain.BrokerError with Op connect.
func Connect(ctx context.Context, opts Options) (Link, error) {
	opts.applyDefaults()

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, &domain.BrokerError{Op: domain.OpConnect, Err: fmt.Errorf("parse broker URL: %w", err)}
	}

	dial, err := dialerFor(u.Scheme)
	if err != nil {
		return nil, &domain.BrokerError{Op: domain.OpConnect, Err: err}
	}

	policy := retry.Policy{
		MaxAttempts:    opts.ConnectAttempts,
		InitialBackoff: opts.InitialBackoff,
		MaxBackoff:     maxBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			opts.Logger.Warn("broker connect failed, retrying",
				"attempt", attempt,
				"backoff", backoff,
				"error", err)
		},
	}

	link, err := retry.Do(ctx, policy, retry.Always, func(ctx context.Context) (Link, error) {
		return dial(ctx, u, opts)
	})
	if err != nil {
		return nil, &domain.BrokerError{Op: domain.OpConnect, Err: err}
	}

	opts.Metrics.Connected.Set(1)
	opts.Logger.Info("broker connected", "scheme", u.Scheme, "host", u.Host, "client_id", opts.ClientID)
	return link, nil
}

func dialerFor(scheme string) (dialFunc, error) {
	switch strings.ToLower(scheme) {
	case "mqtt", "mqtts", "tcp", "ssl", "tls", "ws", "wss":
		return dialMQTT, nil
	case "redis", "rediss":
		return dialRedis, nil
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", scheme)
	}
}

// dispatcher holds the registered message handler shared by both transports.
type dispatcher struct {
	mu      sync.RWMutex
	handler domain.MessageHandler
	metrics *metrics.BrokerMetrics
}

func (d *dispatcher) OnMessage(handler domain.MessageHandler) {
	d.mu.Lock()
	d.handler = handler
	d.mu.Unlock()
}

func (d *dispatcher) dispatch(topic domain.Topic, payload []byte) {
	d.metrics.MessagesReceived.WithLabelValues(topic.Kind()).Inc()

	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()

	if h != nil {
		h(domain.InboundEvent{Topic: topic, Payload: payload})
	}
}

func observePublish(m *metrics.BrokerMetrics, topic domain.Topic, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Publishes.WithLabelValues(topic.Kind(), status).Inc()
	m.PublishDuration.Observe(time.Since(start).Seconds())
}

// appendUnique returns dst extended with the topics it does not contain yet.
func appendUnique(dst []domain.Topic, topics ...domain.Topic) []domain.Topic {
	for _, t := range topics {
		if !slices.Contains(dst, t) {
			dst = append(dst, t)
		}
	}
	return dst
}
