package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
)

const healthCheckTimeout = time.Second

// redisLink is a Link over Redis pub/sub. Topics map one to one onto
// channels. A single reader goroutine drains the subscription so handler
// calls keep the order Redis delivered them in.
type redisLink struct {
	dispatcher

	rdb *goredis.Client
	sub *goredis.PubSub
	log *slog.Logger

	mu      sync.Mutex
	reading bool
	closed  atomic.Bool
	done    chan struct{}
}

func dialRedis(ctx context.Context, u *url.URL, opts Options) (Link, error) {
	ro, err := goredis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	ro.ClientName = opts.ClientID
	ro.DialTimeout = opts.ConnectTimeout
	if opts.Username != "" {
		ro.Username = opts.Username
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}

	rdb := goredis.NewClient(ro)
	rdb.AddHook(&MetricsHook{metrics: opts.Metrics})

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &redisLink{
		dispatcher: dispatcher{metrics: opts.Metrics},
		rdb:        rdb,
		sub:        rdb.Subscribe(context.Background()),
		log:        opts.Logger.With("component", "redis"),
		done:       make(chan struct{}),
	}, nil
}

func (l *redisLink) Subscribe(ctx context.Context, topics ...domain.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	if l.closed.Load() {
		return &domain.BrokerError{Op: domain.OpSubscribe, Topic: topics[0], Err: domain.ErrNotConnected}
	}

	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = t.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.sub.Subscribe(ctx, channels...); err != nil {
		return &domain.BrokerError{Op: domain.OpSubscribe, Topic: topics[0], Err: err}
	}

	if !l.reading {
		// Confirm the first subscription before handing the connection to the reader.
		if err := l.awaitConfirmations(ctx, len(channels)); err != nil {
			return &domain.BrokerError{Op: domain.OpSubscribe, Topic: topics[0], Err: err}
		}
		l.reading = true
		go l.read(l.sub.Channel())
	}

	for _, t := range topics {
		l.log.Info("subscribed", "topic", t)
	}
	return nil
}

func (l *redisLink) awaitConfirmations(ctx context.Context, n int) error {
	for confirmed := 0; confirmed < n; {
		msg, err := l.sub.Receive(ctx)
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *goredis.Subscription:
			confirmed++
		case *goredis.Message:
			l.dispatch(domain.Topic(m.Channel), []byte(m.Payload))
		}
	}
	return nil
}

func (l *redisLink) read(ch <-chan *goredis.Message) {
	defer close(l.done)
	for msg := range ch {
		l.dispatch(domain.Topic(msg.Channel), []byte(msg.Payload))
	}
}

func (l *redisLink) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	start := time.Now()
	err := l.publish(ctx, topic, payload)
	observePublish(l.metrics, topic, start, err)
	return err
}

func (l *redisLink) publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	if l.closed.Load() {
		return &domain.BrokerError{Op: domain.OpPublish, Topic: topic, Err: domain.ErrNotConnected}
	}
	if err := l.rdb.Publish(ctx, topic.String(), payload).Err(); err != nil {
		return &domain.BrokerError{Op: domain.OpPublish, Topic: topic, Err: err}
	}
	return nil
}

func (l *redisLink) IsConnected() bool {
	if l.closed.Load() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return l.rdb.Ping(ctx).Err() == nil
}

func (l *redisLink) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.metrics.Connected.Set(0)

	l.mu.Lock()
	reading := l.reading
	l.mu.Unlock()

	err := l.sub.Close()
	if reading {
		select {
		case <-l.done:
		case <-time.After(healthCheckTimeout):
			l.log.Warn("subscription reader did not stop in time")
		}
	}
	return errors.Join(err, l.rdb.Close())
}

var _ Link = (*redisLink)(nil)
