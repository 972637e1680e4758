package runtime

import (
	"context"
	"math/rand/v2"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/eventspine/eventspine/internal/messagestore"
	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
)

// AuditLog is the append capability the router needs from the message store.
type AuditLog interface {
	Append(ctx context.Context, stream string, payload []byte) (uint64, error)
}

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Store       AuditLog
	Publisher   message.Publisher
	Codec       *envelope.Codec
	EntityQueue string
	// FunctionQueues are the N function-processing queues stateless commands
	// are spread over.
	FunctionQueues []string
	Metrics        *PipelineMetrics
	Logger         loggingpkg.ServiceLogger

	// pickQueue overrides the queue selection for tests.
	pickQueue func(n int) int
}

// Router is the single ingress point for commands: it classifies each
// delivered envelope, appends the audit record, and forwards the envelope to
// exactly one destination queue.
type Router struct {
	store          AuditLog
	publisher      message.Publisher
	codec          *envelope.Codec
	entityQueue    string
	functionQueues []string
	metrics        *PipelineMetrics
	logger         loggingpkg.ServiceLogger
	pickQueue      func(n int) int
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	switch {
	case cfg.Store == nil:
		return nil, errspkg.ErrStoreRequired
	case cfg.Publisher == nil:
		return nil, errspkg.ErrPublisherRequired
	case cfg.Codec == nil:
		return nil, errspkg.ErrCodecRequired
	case cfg.EntityQueue == "":
		return nil, errspkg.ErrQueueRequired
	case len(cfg.FunctionQueues) == 0:
		return nil, errspkg.ErrNoFunctionQueues
	}
	pick := cfg.pickQueue
	if pick == nil {
		// Uniform and content-independent: two identical commands may land
		// on different queues, so no ordering exists between function
		// commands. A single IntN call is race-free across queue loops.
		pick = rand.IntN
	}
	return &Router{
		store:          cfg.Store,
		publisher:      cfg.Publisher,
		codec:          cfg.Codec,
		entityQueue:    cfg.EntityQueue,
		functionQueues: cfg.FunctionQueues,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		pickQueue:      pick,
	}, nil
}

// Route classifies the envelope and forwards it. Commands are appended to the
// audit stream before anything else; a failed audit append aborts the
// delivery with nothing enqueued. Events on the ingress are a protocol
// violation and leave no trace in the store or any queue.
func (r *Router) Route(ctx context.Context, env *envelope.Envelope) error {
	if env == nil || env.Message == nil {
		return errspkg.ErrEnvelopeRequired
	}

	kind := env.Kind()
	switch kind {
	case envelope.KindEvent, envelope.KindFunctionEvent:
		r.metrics.observeProtocolViolation(kind.String())
		return &errspkg.ProtocolViolationError{Kind: kind.String(), Queue: "router"}
	case envelope.KindCommand, envelope.KindEntityCommand, envelope.KindFunctionCommand:
		// fall through to command routing below
	default:
		return &errspkg.UnrecognizedKindError{Kind: kind.String()}
	}

	// Encode once: the audited payload and the enqueued payload are
	// byte-identical.
	payload, err := r.codec.Encode(env)
	if err != nil {
		return err
	}

	pos, err := r.store.Append(ctx, messagestore.AuditStream, payload)
	if err != nil {
		return &errspkg.AuditAppendError{EnvelopeID: env.ID, Err: err}
	}

	queue := r.entityQueue
	if kind == envelope.KindFunctionCommand {
		queue = r.functionQueues[r.pickQueue(len(r.functionQueues))]
	}

	msg := message.NewMessage(env.ID, payload)
	for k, v := range env.Metadata {
		msg.Metadata[k] = v
	}
	msg.SetContext(ctx)

	if err := r.publisher.Publish(queue, msg); err != nil {
		return err
	}

	r.metrics.observeRouted(queue)
	if r.logger != nil {
		r.logger.Debug("routed command", loggingpkg.LogFields{
			"envelope_id":  env.ID,
			"message_name": env.Message.MessageName(),
			"queue":        queue,
			"audit_pos":    pos,
		})
	}
	return nil
}
