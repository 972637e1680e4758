package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/eventspine/eventspine/internal/messagestore"
	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
)

// StreamVerifier reports whether the message store can be trusted as a
// replay source. Satisfied by *LogPublisher.
type StreamVerifier interface {
	Verify() error
}

// RebuilderConfig wires a startup projection rebuild.
type RebuilderConfig struct {
	Store      *messagestore.Store
	Codec      *envelope.Codec
	Verifier   StreamVerifier
	Dispatcher *Dispatcher
	// Sets are the projection handler sets the replay feeds. Handlers must
	// be idempotent: the rebuild runs on every startup over the full log.
	Sets      []*HandlerSet
	BatchSize int
	Metrics   *PipelineMetrics
	Logger    loggingpkg.ServiceLogger
}

// Rebuilder replays the whole message store into the registered projection
// handlers before the service accepts traffic, so views derived from the log
// are complete even after a crash or a fresh view database.
type Rebuilder struct {
	store      *messagestore.Store
	codec      *envelope.Codec
	verifier   StreamVerifier
	dispatcher *Dispatcher
	sets       []*HandlerSet
	batchSize  int
	metrics    *PipelineMetrics
	logger     loggingpkg.ServiceLogger
}

func NewRebuilder(cfg RebuilderConfig) (*Rebuilder, error) {
	switch {
	case cfg.Store == nil:
		return nil, errspkg.ErrStoreRequired
	case cfg.Codec == nil:
		return nil, errspkg.ErrCodecRequired
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(0, cfg.Logger)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultPublishBatch
	}
	return &Rebuilder{
		store:      cfg.Store,
		codec:      cfg.Codec,
		verifier:   cfg.Verifier,
		dispatcher: dispatcher,
		sets:       cfg.Sets,
		batchSize:  batch,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

// Rebuild verifies the stream and replays every non-audit record through the
// projection handlers in global order. Any error is fatal: the caller must
// not start serving on a partially rebuilt view set.
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	start := time.Now()

	if r.verifier != nil {
		if err := r.verifier.Verify(); err != nil {
			return fmt.Errorf("rebuild: stream verification: %w", err)
		}
	}

	var replayed int
	from := uint64(1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		records, err := r.store.ReadFrom(from, r.batchSize)
		if err != nil {
			return fmt.Errorf("rebuild: read from %d: %w", from, err)
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			from = rec.Pos + 1
			if rec.Stream == messagestore.AuditStream {
				continue
			}
			env, err := r.codec.Decode(rec.Payload)
			if err != nil {
				return fmt.Errorf("rebuild: decode record %d: %w", rec.Pos, err)
			}
			for _, set := range r.sets {
				if err := r.dispatcher.Dispatch(ctx, set, env); err != nil {
					return fmt.Errorf("rebuild: replay record %d: %w", rec.Pos, err)
				}
			}
			replayed++
		}
	}

	elapsed := time.Since(start)
	r.metrics.observeRebuild(elapsed.Seconds(), replayed)
	if r.logger != nil {
		r.logger.Info("projection rebuild complete", loggingpkg.LogFields{
			"records":   replayed,
			"elapsed_s": elapsed.Seconds(),
		})
	}
	return nil
}
