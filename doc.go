// Package eventspine is the routing, audit, quarantine, and replay core of an
// event-sourced service, built on Watermill and Pebble. Every command entering
// the system is appended to a durable audit stream before it is enqueued;
// entity-addressed commands flow to a fixed entity queue while stateless
// function commands are spread uniformly over N function queues. Committed
// store records are tailed by a checkpointed publisher and become live event
// traffic, and registered projections are rebuilt from the full log on every
// startup before a single queue is consumed.
//
// Failed deliveries never stall a queue: the envelope is persisted into a
// keyed error container and a notification is sent through the dual-channel
// sender, after which the loop moves on. Replay policy for quarantined
// envelopes belongs to the operator.
//
// # Transports
//
// Eventspine supports 6 message transports out of the box:
//   - channel: In-memory Go channels for testing
//   - kafka: High-throughput streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - nats: High-performance messaging
//   - nats-jetstream: NATS with persistence, ack/nak, and delayed delivery
//   - http: Request/response messaging
//
// # Middleware
//
// The default middleware chain includes correlation ID injection, structured
// logging, OpenTelemetry tracing, Prometheus metrics, retry with exponential
// backoff, and panic recovery. Custom middleware can be added via
// ServiceDependencies.Middlewares.
//
// A minimal setup fills Config, creates a Service, registers message
// factories and handlers, and calls Start. The in-memory channel transport
// makes the whole pipeline runnable in a unit test.
package eventspine
