package runtime

import (
	"context"
	"errors"
	"testing"

	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	metadatapkg "github.com/eventspine/eventspine/internal/runtime/metadata"
)

func TestNewDualSenderValidations(t *testing.T) {
	codec := newTestCodec()
	if _, err := NewDualSender(nil, codec, "router", "recorder"); !errors.Is(err, errspkg.ErrPublisherRequired) {
		t.Fatalf("expected publisher required, got %v", err)
	}
	if _, err := NewDualSender(&recordingPublisher{}, nil, "router", "recorder"); !errors.Is(err, errspkg.ErrCodecRequired) {
		t.Fatalf("expected codec required, got %v", err)
	}
	if _, err := NewDualSender(&recordingPublisher{}, codec, "", "recorder"); !errors.Is(err, errspkg.ErrQueueRequired) {
		t.Fatalf("expected queue required, got %v", err)
	}
}

func TestSendCommandGoesToRouterQueue(t *testing.T) {
	pub := &recordingPublisher{}
	sender, err := NewDualSender(pub, newTestCodec(), "router", "recorder")
	if err != nil {
		t.Fatalf("sender init failed: %v", err)
	}

	if err := sender.Send(context.Background(), &payCommand{OrderID: "42"}, nil); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if topics := pub.Topics(); len(topics) != 1 || topics[0] != "router" {
		t.Fatalf("expected router queue, got %v", topics)
	}
}

func TestSendFunctionCommandGoesToRouterQueue(t *testing.T) {
	pub := &recordingPublisher{}
	sender, err := NewDualSender(pub, newTestCodec(), "router", "recorder")
	if err != nil {
		t.Fatalf("sender init failed: %v", err)
	}

	if err := sender.Send(context.Background(), &resizeImage{URL: "u"}, nil); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if topics := pub.Topics(); len(topics) != 1 || topics[0] != "router" {
		t.Fatalf("expected router queue, got %v", topics)
	}
}

func TestSendFunctionEventGoesToRecorderQueue(t *testing.T) {
	pub := &recordingPublisher{}
	sender, err := NewDualSender(pub, newTestCodec(), "router", "recorder")
	if err != nil {
		t.Fatalf("sender init failed: %v", err)
	}

	if err := sender.Send(context.Background(), &imageResized{URL: "u"}, nil); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if topics := pub.Topics(); len(topics) != 1 || topics[0] != "recorder" {
		t.Fatalf("expected recorder queue, got %v", topics)
	}
}

func TestSendEventIsRejected(t *testing.T) {
	pub := &recordingPublisher{}
	sender, err := NewDualSender(pub, newTestCodec(), "router", "recorder")
	if err != nil {
		t.Fatalf("sender init failed: %v", err)
	}

	var unrecognized *errspkg.UnrecognizedKindError
	if err := sender.Send(context.Background(), &orderPaid{OrderID: "42"}, nil); !errors.As(err, &unrecognized) {
		t.Fatalf("expected unrecognized kind error, got %v", err)
	}
	if len(pub.Topics()) != 0 {
		t.Fatal("expected nothing published for a rejected kind")
	}
}

func TestSendNilMessageIsRejected(t *testing.T) {
	pub := &recordingPublisher{}
	sender, err := NewDualSender(pub, newTestCodec(), "router", "recorder")
	if err != nil {
		t.Fatalf("sender init failed: %v", err)
	}
	if err := sender.Send(context.Background(), nil, nil); !errors.Is(err, errspkg.ErrEnvelopeRequired) {
		t.Fatalf("expected envelope required, got %v", err)
	}
}

func TestSendPreservesMetadata(t *testing.T) {
	pub := &recordingPublisher{}
	sender, err := NewDualSender(pub, newTestCodec(), "router", "recorder")
	if err != nil {
		t.Fatalf("sender init failed: %v", err)
	}

	md := metadatapkg.Metadata{"origin": "unit"}
	if err := sender.Send(context.Background(), &payCommand{OrderID: "42"}, md); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	msg := pub.Messages()[0]
	if msg.Metadata["origin"] != "unit" {
		t.Fatalf("expected metadata to survive, got %v", msg.Metadata)
	}
	if msg.Metadata[metadatapkg.KeyCorrelationID] == "" {
		t.Fatal("expected a correlation id to be stamped")
	}
}
