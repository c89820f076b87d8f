package domain

import "encoding/json"

// InboundEvent is one message received from the broker on a subscribed topic.
type InboundEvent struct {
	Topic   Topic
	Payload []byte
}

// Envelope is the exact shape sent to every viewer connection.
type Envelope struct {
	Topic Topic           `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// MessageHandler receives each inbound broker message exactly once, in the
// order the transport delivered it.
type MessageHandler func(event InboundEvent)
