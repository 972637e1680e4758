// Package errors defines the sentinel and typed errors shared by the
// eventspine runtime. The typed errors carry enough context for queue loops to
// decide between quarantine and crash.
package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired    = sterrors.New("eventspine: service is required")
	ErrStoreRequired      = sterrors.New("eventspine: message store is required")
	ErrPublisherRequired  = sterrors.New("eventspine: queue publisher is required")
	ErrQueueRequired      = sterrors.New("eventspine: queue name is required")
	ErrCodecRequired      = sterrors.New("eventspine: envelope codec is required")
	ErrHandlerRequired    = sterrors.New("eventspine: handler function is required")
	ErrEnvelopeRequired   = sterrors.New("eventspine: envelope is required")
	ErrViewStoreRequired  = sterrors.New("eventspine: view store is required")
	ErrNoFunctionQueues   = sterrors.New("eventspine: at least one function queue is required")
	ErrUnregisteredName   = sterrors.New("eventspine: message name is not registered with the codec")
	ErrCheckpointRequired = sterrors.New("eventspine: checkpoint group is required")

	ErrMessageTypeRequired    = sterrors.New("eventspine: message type is required")
	ErrMessagePointerRequired = sterrors.New("eventspine: message type must be a pointer")
)

// ProtocolViolationError reports a message kind that must never reach the
// routing ingress, such as an event delivered to the command queue. It is
// non-retryable: it signals a wiring bug upstream, not a transient failure.
type ProtocolViolationError struct {
	Kind  string
	Queue string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("eventspine: protocol violation: %s delivered to %s", e.Kind, e.Queue)
}

// UnrecognizedKindError reports a message kind the router has no branch for.
// Non-retryable; escalate instead of requeueing.
type UnrecognizedKindError struct {
	Kind string
}

func (e *UnrecognizedKindError) Error() string {
	return fmt.Sprintf("eventspine: unrecognized message kind %q", e.Kind)
}

// AuditAppendError wraps a failed audit append. A command whose audit record
// could not be written is not considered routed.
type AuditAppendError struct {
	EnvelopeID string
	Err        error
}

func (e *AuditAppendError) Error() string {
	return fmt.Sprintf("eventspine: audit append failed for envelope %s: %v", e.EnvelopeID, e.Err)
}

func (e *AuditAppendError) Unwrap() error { return e.Err }

// QuarantinePersistError wraps a failed error-container write. There is no
// further fallback: the consuming worker must treat this as fatal so failures
// are never dropped silently.
type QuarantinePersistError struct {
	EnvelopeID string
	Err        error
}

func (e *QuarantinePersistError) Error() string {
	return fmt.Sprintf("eventspine: quarantine persist failed for envelope %s: %v", e.EnvelopeID, e.Err)
}

func (e *QuarantinePersistError) Unwrap() error { return e.Err }

// StreamCorruptionError reports an inconsistency detected by the publisher's
// stream verification, such as a checkpoint past the log head. Fatal to
// startup.
type StreamCorruptionError struct {
	Detail string
}

func (e *StreamCorruptionError) Error() string {
	return "eventspine: stream corruption: " + e.Detail
}
