package domain

import (
	"context"
)

// Publisher publishes raw payloads to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, payload []byte) error
}

// Broadcaster fans a pre-encoded message out to every viewer connection.
type Broadcaster interface {
	Broadcast(data []byte)
}
