package runtime

import (
	"context"
	"time"

	"github.com/eventspine/eventspine/internal/errstore"
	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
	"github.com/eventspine/eventspine/internal/runtime/metadata"
)

// Failure captures why an envelope is being quarantined.
type Failure struct {
	Reason string
	// Queue is the queue the envelope was consumed from.
	Queue string
}

// NotificationFunc builds the message announcing a quarantined envelope. The
// message's own kind decides its channel: a command re-enters the router
// queue, a function event goes to the recorder queue.
type NotificationFunc func(env *envelope.Envelope, failure Failure) envelope.Message

// QuarantineNotice is the default quarantine notification, consumed from the
// recorder queue.
type QuarantineNotice struct {
	EnvelopeID    string `json:"envelope_id"`
	Reason        string `json:"reason"`
	OriginalQueue string `json:"original_queue"`
}

func (*QuarantineNotice) MessageKind() envelope.Kind { return envelope.KindFunctionEvent }
func (*QuarantineNotice) MessageName() string        { return "QuarantineNotice" }

// DefaultNotification emits a QuarantineNotice function event.
func DefaultNotification(env *envelope.Envelope, failure Failure) envelope.Message {
	return &QuarantineNotice{
		EnvelopeID:    env.ID,
		Reason:        failure.Reason,
		OriginalQueue: failure.Queue,
	}
}

// QuarantineConfig wires the quarantine's collaborators.
type QuarantineConfig struct {
	Errors *errstore.Store
	Codec  *envelope.Codec
	Sender Sender
	// Notify builds the notification message; nil selects DefaultNotification.
	Notify  NotificationFunc
	Metrics *PipelineMetrics
	Logger  loggingpkg.ServiceLogger
}

// Quarantine isolates envelopes whose processing failed so one poison message
// cannot stall its queue. It never retries the original operation; replay
// policy belongs to whatever supervises the error container.
type Quarantine struct {
	errors  *errstore.Store
	codec   *envelope.Codec
	sender  Sender
	notify  NotificationFunc
	metrics *PipelineMetrics
	logger  loggingpkg.ServiceLogger
}

func NewQuarantine(cfg QuarantineConfig) (*Quarantine, error) {
	switch {
	case cfg.Errors == nil:
		return nil, errspkg.ErrStoreRequired
	case cfg.Codec == nil:
		return nil, errspkg.ErrCodecRequired
	case cfg.Sender == nil:
		return nil, errspkg.ErrPublisherRequired
	}
	notify := cfg.Notify
	if notify == nil {
		notify = DefaultNotification
	}
	return &Quarantine{
		errors:  cfg.Errors,
		codec:   cfg.Codec,
		sender:  cfg.Sender,
		notify:  notify,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

// Isolate persists the envelope into the error container and dispatches one
// notification through the dual-channel sender. A failed container write is
// returned as a QuarantinePersistError: there is no further fallback, so the
// consuming worker must treat it as fatal rather than drop the failure.
func (q *Quarantine) Isolate(ctx context.Context, env *envelope.Envelope, failure Failure) error {
	if env == nil || env.Message == nil {
		return errspkg.ErrEnvelopeRequired
	}

	payload, err := q.codec.Encode(env)
	if err != nil {
		return &errspkg.QuarantinePersistError{EnvelopeID: env.ID, Err: err}
	}
	entry := errstore.Entry{
		EnvelopeID:    env.ID,
		Envelope:      payload,
		Reason:        failure.Reason,
		OriginalQueue: failure.Queue,
		QuarantinedAt: time.Now().UTC(),
	}
	if err := q.errors.Put(entry); err != nil {
		return &errspkg.QuarantinePersistError{EnvelopeID: env.ID, Err: err}
	}

	q.metrics.observeQuarantined(failure.Queue)
	if q.logger != nil {
		q.logger.Warn("envelope quarantined", loggingpkg.LogFields{
			"envelope_id": env.ID,
			"queue":       failure.Queue,
			"reason":      failure.Reason,
		})
	}

	notice := q.notify(env, failure)
	if notice == nil {
		return nil
	}
	md := metadata.New(metadata.KeyCorrelationID, env.Metadata.CorrelationID())
	if err := q.sender.Send(ctx, notice, md); err != nil {
		// The envelope is safely isolated; a lost notification is logged,
		// not fatal.
		if q.logger != nil {
			q.logger.Error("quarantine notification failed", err, loggingpkg.LogFields{
				"envelope_id": env.ID,
			})
		}
	}
	return nil
}
