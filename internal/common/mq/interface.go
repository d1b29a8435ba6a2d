// Package mq defines the message queue abstraction used for assessment
// lifecycle events and evaluation dispatch.
package mq

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageQueue defines the unified interface for message queue operations.
type MessageQueue interface {
	Producer
	Consumer

	// Ping verifies the message queue connection is alive
	Ping(ctx context.Context) error

	// Close closes the message queue connection
	Close() error
}

// Producer defines the interface for publishing messages.
type Producer interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer defines the interface for consuming messages.
type Consumer interface {
	// Subscribe registers a handler for a topic. The handler returns nil on
	// success; a non-nil error causes redelivery up to MaxRetries.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc) error

	// Start starts consuming messages on all subscribed topics.
	Start() error

	// Stop gracefully stops consuming messages.
	Stop() error
}

// Message represents a message in the queue.
type Message struct {
	// ID is the unique identifier for the message
	ID string `json:"id"`

	// Body is the message payload
	Body []byte `json:"body"`

	// Headers contains metadata about the message
	Headers map[string]string `json:"headers"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`

	// Retry information
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// NewMessage creates a message with a generated ID and current timestamp.
func NewMessage(body []byte) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// HandlerFunc is the function signature for message handlers.
type HandlerFunc func(ctx context.Context, message *Message) error
