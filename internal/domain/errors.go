package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("broker not connected")
	ErrMissingField = errors.New("missing uid or amount")
)

// BrokerOp names the broker operation that failed.
type BrokerOp string

const (
	OpConnect   BrokerOp = "connect"
	OpSubscribe BrokerOp = "subscribe"
	OpPublish   BrokerOp = "publish"
)

// BrokerError covers connection, subscription and publish failures.
type BrokerError struct {
	Op    BrokerOp
	Topic Topic
	Err   error
}

func (e *BrokerError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("broker %s %s: %v", e.Op, e.Topic, e.Err)
	}
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// DecodeError is reported when an inbound payload is not well-formed JSON.
type DecodeError struct {
	Topic Topic
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payload on %s: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a command request. It always matches ErrMissingField.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrMissingField
}
