package app

import (
	"context"
	"sync"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
)

type published struct {
	topic   domain.Topic
	payload string
}

type mockPublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, topic domain.Topic, payload []byte) error
	calls     []published
}

func (m *mockPublisher) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	m.mu.Lock()
	m.calls = append(m.calls, published{topic: topic, payload: string(payload)})
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, topic, payload)
	}
	return nil
}

func (m *mockPublisher) published() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.calls...)
}

type mockBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockBroadcaster) Broadcast(data []byte) {
	m.mu.Lock()
	m.messages = append(m.messages, string(data))
	m.mu.Unlock()
}

func (m *mockBroadcaster) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}
