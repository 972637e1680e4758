package envelope

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	"github.com/eventspine/eventspine/internal/runtime/jsoncodec"
	"github.com/eventspine/eventspine/internal/runtime/metadata"
)

var protoMarshal = protojson.MarshalOptions{EmitUnpopulated: true}

// Codec serializes envelopes to a transport-neutral JSON form and restores
// them through a registry of message factories keyed by schema name.
// Protobuf-backed messages marshal their payload through protojson; plain
// structs go through the shared JSON codec.
type Codec struct {
	mu        sync.RWMutex
	factories map[string]func() Message
}

func NewCodec() *Codec {
	return &Codec{factories: make(map[string]func() Message)}
}

// Register adds a message factory to the codec. The factory is invoked once
// immediately to learn the schema name; it must return a fresh value on every
// call.
func (c *Codec) Register(factory func() Message) {
	prototype := factory()
	if prototype == nil {
		panic("envelope: factory returned nil message")
	}
	c.mu.Lock()
	c.factories[prototype.MessageName()] = factory
	c.mu.Unlock()
}

type wireEnvelope struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Name     string            `json:"name"`
	Metadata metadata.Metadata `json:"metadata,omitempty"`
	Payload  json.RawMessage   `json:"payload"`
}

// Encode serializes the envelope. Encoding is deterministic for a given
// envelope value, so re-encoding an unmodified envelope yields byte-identical
// output.
func (c *Codec) Encode(env *Envelope) ([]byte, error) {
	if env == nil || env.Message == nil {
		return nil, errspkg.ErrEnvelopeRequired
	}

	var payload []byte
	var err error
	if pm, ok := env.Message.(proto.Message); ok {
		payload, err = protoMarshal.Marshal(pm)
	} else {
		payload, err = jsoncodec.Marshal(env.Message)
	}
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal payload %s: %w", env.Message.MessageName(), err)
	}

	return jsoncodec.Marshal(wireEnvelope{
		ID:       env.ID,
		Kind:     env.Kind().String(),
		Name:     env.Message.MessageName(),
		Metadata: env.Metadata,
		Payload:  payload,
	})
}

// Decode restores an envelope from its wire form. The schema name must have
// been registered; the decoded message's own kind is authoritative over the
// wire kind field.
func (c *Codec) Decode(data []byte) (*Envelope, error) {
	var wire wireEnvelope
	if err := jsoncodec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("envelope: unmarshal: %w", err)
	}

	c.mu.RLock()
	factory, ok := c.factories[wire.Name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnregisteredName, wire.Name)
	}

	msg := factory()
	var err error
	if pm, ok := msg.(proto.Message); ok {
		err = protojson.Unmarshal(wire.Payload, pm)
	} else {
		err = jsoncodec.Unmarshal(wire.Payload, msg)
	}
	if err != nil {
		return nil, fmt.Errorf("envelope: unmarshal payload %s: %w", wire.Name, err)
	}

	md := wire.Metadata
	if md == nil {
		md = metadata.Metadata{}
	}
	return &Envelope{ID: wire.ID, Message: msg, Metadata: md}, nil
}

// ToTransport converts an envelope to a watermill message: the UUID is the
// envelope id, the payload the encoded envelope, and the name and kind are
// mirrored into transport metadata for broker-side filtering.
func (c *Codec) ToTransport(env *Envelope) (*message.Message, error) {
	payload, err := c.Encode(env)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(env.ID, payload)
	for k, v := range env.Metadata {
		msg.Metadata[k] = v
	}
	msg.Metadata[metadata.KeyMessageName] = env.Message.MessageName()
	msg.Metadata[metadata.KeyMessageKind] = env.Kind().String()
	return msg, nil
}

// FromTransport restores an envelope from a watermill message payload.
func (c *Codec) FromTransport(msg *message.Message) (*Envelope, error) {
	return c.Decode(msg.Payload)
}
