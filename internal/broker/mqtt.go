package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
)

const (
	disconnectQuiesce    = 250 // milliseconds
	maxReconnectInterval = 30 * time.Second
	subackFailure        = 0x80
)

var bridgeLoggers sync.Once

// mqttLink is a Link backed by a paho MQTT client. The client reconnects on
// its own; subscriptions are replayed from the on-connect handler.
type mqttLink struct {
	dispatcher

	client mqtt.Client
	qos    byte
	log    *slog.Logger

	mu     sync.Mutex
	topics []domain.Topic
}

func dialMQTT(ctx context.Context, u *url.URL, opts Options) (Link, error) {
	bridgeLoggers.Do(func() { installPahoLoggers(opts.Logger) })

	l := &mqttLink{
		dispatcher: dispatcher{metrics: opts.Metrics},
		qos:        opts.QoS,
		log:        opts.Logger.With("component", "mqtt"),
	}

	co := mqtt.NewClientOptions().
		AddBroker(brokerAddress(u)).
		SetClientID(opts.ClientID).
		SetConnectTimeout(opts.ConnectTimeout).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(maxReconnectInterval).
		SetOnConnectHandler(l.onConnect).
		SetConnectionLostHandler(l.onConnectionLost).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			l.log.Info("reconnecting to broker")
		})
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}

	l.client = mqtt.NewClient(co)

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := wait(ctx, l.client.Connect()); err != nil {
		l.client.Disconnect(0)
		return nil, err
	}
	return l, nil
}

// brokerAddress strips credentials from the URL; paho takes them from options.
func brokerAddress(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}

func (l *mqttLink) Subscribe(ctx context.Context, topics ...domain.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	if !l.client.IsConnectionOpen() {
		return &domain.BrokerError{Op: domain.OpSubscribe, Topic: topics[0], Err: domain.ErrNotConnected}
	}

	if err := l.subscribe(ctx, topics); err != nil {
		return err
	}

	l.mu.Lock()
	l.topics = appendUnique(l.topics, topics...)
	l.mu.Unlock()
	return nil
}

func (l *mqttLink) subscribe(ctx context.Context, topics []domain.Topic) error {
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t.String()] = l.qos
	}

	token := l.client.SubscribeMultiple(filters, l.onMessage)
	if err := wait(ctx, token); err != nil {
		return &domain.BrokerError{Op: domain.OpSubscribe, Topic: topics[0], Err: err}
	}

	if st, ok := token.(*mqtt.SubscribeToken); ok {
		for topic, code := range st.Result() {
			if code == subackFailure {
				return &domain.BrokerError{Op: domain.OpSubscribe, Topic: domain.Topic(topic), Err: errors.New("subscription refused")}
			}
		}
	}

	for _, t := range topics {
		l.log.Info("subscribed", "topic", t)
	}
	return nil
}

func (l *mqttLink) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	start := time.Now()
	err := l.publish(ctx, topic, payload)
	observePublish(l.metrics, topic, start, err)
	return err
}

func (l *mqttLink) publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	if !l.client.IsConnectionOpen() {
		return &domain.BrokerError{Op: domain.OpPublish, Topic: topic, Err: domain.ErrNotConnected}
	}
	if err := wait(ctx, l.client.Publish(topic.String(), l.qos, false, payload)); err != nil {
		return &domain.BrokerError{Op: domain.OpPublish, Topic: topic, Err: err}
	}
	return nil
}

func (l *mqttLink) IsConnected() bool {
	return l.client.IsConnectionOpen()
}

func (l *mqttLink) Close() error {
	l.client.Disconnect(disconnectQuiesce)
	l.metrics.Connected.Set(0)
	return nil
}

func (l *mqttLink) onMessage(_ mqtt.Client, msg mqtt.Message) {
	l.dispatch(domain.Topic(msg.Topic()), msg.Payload())
}

func (l *mqttLink) onConnect(mqtt.Client) {
	l.metrics.Connected.Set(1)

	l.mu.Lock()
	topics := append([]domain.Topic(nil), l.topics...)
	l.mu.Unlock()
	if len(topics) == 0 {
		return
	}

	l.log.Info("broker reconnected, restoring subscriptions", "topics", len(topics))
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := l.subscribe(ctx, topics); err != nil {
		l.log.Error("failed to restore subscriptions", "error", err)
	}
}

func (l *mqttLink) onConnectionLost(_ mqtt.Client, err error) {
	l.metrics.Connected.Set(0)
	l.metrics.ConnectionLost.Inc()
	l.log.Warn("broker connection lost", "error", err)
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("waiting for broker: %w", ctx.Err())
	}
}

// pahoLogger forwards paho's package-level log output to slog.
type pahoLogger struct {
	log   *slog.Logger
	level slog.Level
}

func (p pahoLogger) Println(v ...any) {
	p.log.Log(context.Background(), p.level, strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (p pahoLogger) Printf(format string, v ...any) {
	p.log.Log(context.Background(), p.level, fmt.Sprintf(format, v...))
}

func installPahoLoggers(log *slog.Logger) {
	log = log.With("component", "paho")
	mqtt.ERROR = pahoLogger{log: log, level: slog.LevelError}
	mqtt.CRITICAL = pahoLogger{log: log, level: slog.LevelError}
	mqtt.WARN = pahoLogger{log: log, level: slog.LevelWarn}
	mqtt.DEBUG = pahoLogger{log: log, level: slog.LevelDebug}
}

var _ Link = (*mqttLink)(nil)
