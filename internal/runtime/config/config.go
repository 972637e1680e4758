// Package config holds the explicit configuration passed to the eventspine
// Service at construction. There is no process-wide mutable state: router,
// publisher, and rebuilder read everything they need from this struct, which
// keeps them independently testable with injected fakes.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied by Normalize.
const (
	DefaultRouterQueue         = "router"
	DefaultEntityQueue         = "entity-commands"
	DefaultRecorderQueue       = "func-recorder"
	DefaultEventQueue          = "events"
	DefaultFunctionQueuePrefix = "func"
	DefaultFunctionQueueCount  = 4
	DefaultSlowHandlerWarning  = 10 * time.Second
	DefaultCheckpointGroup     = "publisher"
)

// Config groups the transport, queue, and pipeline settings. Each transport
// only reads the keys relevant to it.
type Config struct {
	// PubSubSystem selects the queue transport: "channel", "kafka",
	// "rabbitmq", "nats", "jetstream", or "http".
	PubSubSystem string

	// Kafka configuration.
	KafkaBrokers       []string
	KafkaConsumerGroup string

	// RabbitMQ configuration.
	RabbitMQURL string

	// NATS configuration (core and JetStream).
	NATSURL string

	// HTTP configuration.
	HTTPServerAddress string
	// HTTPPublisherURL is the base URL messages are POSTed to.
	HTTPPublisherURL string

	// DataDir is the Pebble directory holding the message store, the
	// quarantine container, and the view store.
	DataDir string

	// Queue names. Zero values pick the defaults above.
	RouterQueue   string
	EntityQueue   string
	RecorderQueue string
	EventQueue    string
	// FunctionQueueCount is N, the number of function-processing queues the
	// router spreads stateless commands over.
	FunctionQueueCount int
	// FunctionQueuePrefix names the function queues "{prefix}-{i}".
	FunctionQueuePrefix string

	// SlowHandlerWarning is the dispatch duration above which a warning is
	// logged. Zero picks the 10s default.
	SlowHandlerWarning time.Duration

	// PublishFilterExpr is an optional CEL expression refining which store
	// records the publisher forwards. Empty keeps the default policy
	// (everything except the audit stream).
	PublishFilterExpr string

	// CheckpointGroup names the publisher's durable checkpoint.
	CheckpointGroup string

	// Retry middleware tuning. Zero values fall back to library defaults.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// Metrics configuration.
	MetricsEnabled bool
	MetricsPort    int
}

// Normalize returns a copy with defaults applied to zero values.
func (c Config) Normalize() Config {
	if c.RouterQueue == "" {
		c.RouterQueue = DefaultRouterQueue
	}
	if c.EntityQueue == "" {
		c.EntityQueue = DefaultEntityQueue
	}
	if c.RecorderQueue == "" {
		c.RecorderQueue = DefaultRecorderQueue
	}
	if c.EventQueue == "" {
		c.EventQueue = DefaultEventQueue
	}
	if c.FunctionQueuePrefix == "" {
		c.FunctionQueuePrefix = DefaultFunctionQueuePrefix
	}
	if c.FunctionQueueCount <= 0 {
		c.FunctionQueueCount = DefaultFunctionQueueCount
	}
	if c.SlowHandlerWarning <= 0 {
		c.SlowHandlerWarning = DefaultSlowHandlerWarning
	}
	if c.CheckpointGroup == "" {
		c.CheckpointGroup = DefaultCheckpointGroup
	}
	return c
}

// FunctionQueues returns the names of the N function-processing queues.
func (c *Config) FunctionQueues() []string {
	n := c.FunctionQueueCount
	if n <= 0 {
		n = DefaultFunctionQueueCount
	}
	prefix := c.FunctionQueuePrefix
	if prefix == "" {
		prefix = DefaultFunctionQueuePrefix
	}
	queues := make([]string, n)
	for i := range queues {
		queues[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return queues
}

// Getter methods to implement the transport.Config interface.
func (c *Config) GetPubSubSystem() string       { return c.PubSubSystem }
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetKafkaConsumerGroup() string { return c.KafkaConsumerGroup }
func (c *Config) GetRabbitMQURL() string        { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string            { return c.NATSURL }
func (c *Config) GetHTTPServerAddress() string  { return c.HTTPServerAddress }
func (c *Config) GetHTTPPublisherURL() string   { return c.HTTPPublisherURL }

func (c Config) String() string {
	// Redact credentials that may be embedded in connection URLs.
	copied := c
	if copied.RabbitMQURL != "" {
		copied.RabbitMQURL = redactURLCredentials(copied.RabbitMQURL)
	}
	if copied.NATSURL != "" {
		copied.NATSURL = redactURLCredentials(copied.NATSURL)
	}
	// Type alias avoids infinite recursion when printing.
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copied))
}

func redactURLCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "***REDACTED_URL***"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "***REDACTED***")
		}
	}
	return parsed.String()
}

// Validate checks that the configuration is complete for the selected
// transport and internally consistent.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateTransport()...)
	errs = append(errs, c.validateQueues()...)
	errs = append(errs, c.validateRetry()...)

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics: invalid port %d", c.MetricsPort))
	}

	return errors.Join(errs...)
}

func (c *Config) validateTransport() []error {
	switch strings.ToLower(c.PubSubSystem) {
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return []error{errors.New("kafka: brokers are required")}
		}
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return []error{errors.New("rabbitmq: URL is required")}
		}
	case "nats", "jetstream":
		if c.NATSURL == "" {
			return []error{errors.New("nats: URL is required")}
		}
	case "http":
		if c.HTTPPublisherURL == "" {
			return []error{errors.New("http: publisher URL is required")}
		}
	}
	// channel, "", and custom transports have no required config
	return nil
}

func (c *Config) validateQueues() []error {
	var errs []error
	if c.FunctionQueueCount < 0 {
		errs = append(errs, errors.New("queues: function queue count cannot be negative"))
	}
	names := map[string]string{
		"router":   c.RouterQueue,
		"entity":   c.EntityQueue,
		"recorder": c.RecorderQueue,
		"event":    c.EventQueue,
	}
	seen := map[string]string{}
	for role, name := range names {
		if name == "" {
			continue
		}
		if other, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("queues: %s and %s share the name %q", other, role, name))
		}
		seen[name] = role
	}
	return errs
}

func (c *Config) validateRetry() []error {
	var errs []error
	if c.RetryMaxRetries < 0 {
		errs = append(errs, errors.New("retry: max retries cannot be negative"))
	}
	if c.RetryInitialInterval < 0 {
		errs = append(errs, errors.New("retry: initial interval cannot be negative"))
	}
	if c.RetryMaxInterval < 0 {
		errs = append(errs, errors.New("retry: max interval cannot be negative"))
	}
	if c.RetryMaxInterval > 0 && c.RetryInitialInterval > c.RetryMaxInterval {
		errs = append(errs, errors.New("retry: initial interval cannot exceed max interval"))
	}
	return errs
}
