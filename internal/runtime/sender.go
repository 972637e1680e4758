package runtime

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	"github.com/eventspine/eventspine/internal/runtime/metadata"
)

// Sender is the capability domain ports and the quarantine use to feed a
// message back into the pipeline.
type Sender interface {
	Send(ctx context.Context, msg envelope.Message, md metadata.Metadata) error
}

// DualSender routes by message kind behind one facade: command variants
// re-enter through the router queue (and get audited like any other command),
// function events go straight to the recorder queue. There is no private
// channel for either.
type DualSender struct {
	publisher     message.Publisher
	codec         *envelope.Codec
	routerQueue   string
	recorderQueue string
}

func NewDualSender(publisher message.Publisher, codec *envelope.Codec, routerQueue, recorderQueue string) (*DualSender, error) {
	switch {
	case publisher == nil:
		return nil, errspkg.ErrPublisherRequired
	case codec == nil:
		return nil, errspkg.ErrCodecRequired
	case routerQueue == "" || recorderQueue == "":
		return nil, errspkg.ErrQueueRequired
	}
	return &DualSender{
		publisher:     publisher,
		codec:         codec,
		routerQueue:   routerQueue,
		recorderQueue: recorderQueue,
	}, nil
}

// Send wraps the message in a fresh envelope and enqueues it to the channel
// selected by its kind.
func (s *DualSender) Send(ctx context.Context, msg envelope.Message, md metadata.Metadata) error {
	if msg == nil {
		return errspkg.ErrEnvelopeRequired
	}

	var queue string
	switch kind := msg.MessageKind(); {
	case kind.IsCommand():
		queue = s.routerQueue
	case kind == envelope.KindFunctionEvent:
		queue = s.recorderQueue
	default:
		return &errspkg.UnrecognizedKindError{Kind: msg.MessageKind().String()}
	}

	env := envelope.New(msg, md)
	wmMsg, err := s.codec.ToTransport(env)
	if err != nil {
		return err
	}
	wmMsg.SetContext(ctx)
	return s.publisher.Publish(queue, wmMsg)
}
