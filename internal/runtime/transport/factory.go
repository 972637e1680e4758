package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/eventspine/eventspine/internal/runtime/config"
	modtransport "github.com/eventspine/eventspine/transport"

	// Import all transport packages to register them.
	_ "github.com/eventspine/eventspine/transport/channel"
	_ "github.com/eventspine/eventspine/transport/http"
	_ "github.com/eventspine/eventspine/transport/jetstream"
	_ "github.com/eventspine/eventspine/transport/kafka"
	_ "github.com/eventspine/eventspine/transport/nats"
	_ "github.com/eventspine/eventspine/transport/rabbitmq"
)

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Factory abstracts how eventspine initialises message transports.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// DefaultFactory returns the built-in transport factory that uses the
// modular transport registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, fmt.Errorf("config is required")
	}

	t, err := modtransport.Build(ctx, conf, logger)
	if err != nil {
		return Transport{}, err
	}

	return Transport{
		Publisher:  t.Publisher,
		Subscriber: t.Subscriber,
	}, nil
}
