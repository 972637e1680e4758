// Package envelope defines the immutable transport unit of the pipeline and
// the codec that turns it into a transport-neutral byte payload.
package envelope

import (
	"github.com/eventspine/eventspine/internal/runtime/ids"
	"github.com/eventspine/eventspine/internal/runtime/metadata"
)

// Envelope is an immutable wrapper around one message plus delivery
// metadata. It is created on arrival or emission and never mutated; physical
// transports may redeliver it, but each logical delivery consumes it once.
type Envelope struct {
	ID       string
	Message  Message
	Metadata metadata.Metadata
}

// New wraps a message in a fresh envelope with a ULID identifier. The
// metadata map is cloned so later mutation by the caller cannot leak in, and
// a correlation id is stamped when missing.
func New(msg Message, md metadata.Metadata) *Envelope {
	cloned := md.Clone()
	if cloned.CorrelationID() == "" {
		cloned[metadata.KeyCorrelationID] = ids.NewID()
	}
	return &Envelope{
		ID:       ids.NewID(),
		Message:  msg,
		Metadata: cloned,
	}
}

// Kind returns the message kind, or KindUnknown for a nil message.
func (e *Envelope) Kind() Kind {
	if e == nil || e.Message == nil {
		return KindUnknown
	}
	return e.Message.MessageKind()
}
