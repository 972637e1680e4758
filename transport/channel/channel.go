// Package channel runs the queue topology over in-process Go channels. There
// is no broker and nothing survives a restart, which makes it the backend for
// tests, examples, and single-process deployments.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/eventspine/eventspine/transport"
)

// TransportName is the PubSubSystem value that selects this backend.
const TransportName = "channel"

// Factory builds the gochannel pair; tests swap it out.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build wires a publisher/subscriber pair backed by one gochannel instance.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(gochannel.Config{}, logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Capabilities reports what the in-memory backend guarantees.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
