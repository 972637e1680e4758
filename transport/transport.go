// Package transport holds the contract between the routing pipeline and its
// queue backends. A backend lives in its own sub-package, implements Builder,
// and registers itself so configuration can select it by name.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder constructs a backend's publisher/subscriber pair from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config narrows the full configuration surface to the values backends need,
// so backend packages never import the config package.
type Config interface {
	// GetPubSubSystem returns the backend name to build.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string
}

// CapabilitiesProvider is implemented by backends that can report what they
// guarantee at runtime.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// QueueIntrospector is implemented by backends that can count undelivered
// messages on a queue.
type QueueIntrospector interface {
	GetPendingCount(topic string) (int64, error)
}
