package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/eventspine/eventspine/internal/messagestore"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
)

const defaultPublishBatch = 256

// PublisherConfig wires the log publisher's collaborators.
type PublisherConfig struct {
	Store      *messagestore.Store
	Publisher  message.Publisher
	EventQueue string
	// Filter decides which records become live traffic; nil selects
	// DefaultPublishFilter (everything except the audit stream).
	Filter FilterFunc
	// CheckpointGroup names the durable cursor; empty selects "publisher".
	CheckpointGroup string
	BatchSize       int
	Metrics         *PipelineMetrics
	Logger          loggingpkg.ServiceLogger
}

// LogPublisher tails the message store and forwards newly committed records
// to the event-processing queue so committed facts become live traffic.
// Delivery is at-least-once: the enqueue and the checkpoint update are not
// one atomic unit, so downstream consumers must be idempotent.
type LogPublisher struct {
	store      *messagestore.Store
	publisher  message.Publisher
	eventQueue string
	filter     FilterFunc
	group      string
	batchSize  int
	metrics    *PipelineMetrics
	logger     loggingpkg.ServiceLogger
}

func NewLogPublisher(cfg PublisherConfig) (*LogPublisher, error) {
	switch {
	case cfg.Store == nil:
		return nil, errspkg.ErrStoreRequired
	case cfg.Publisher == nil:
		return nil, errspkg.ErrPublisherRequired
	case cfg.EventQueue == "":
		return nil, errspkg.ErrQueueRequired
	}
	filter := cfg.Filter
	if filter == nil {
		filter = DefaultPublishFilter
	}
	group := cfg.CheckpointGroup
	if group == "" {
		group = "publisher"
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultPublishBatch
	}
	return &LogPublisher{
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		eventQueue: cfg.EventQueue,
		filter:     filter,
		group:      group,
		batchSize:  batch,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

// Run scans the store for unpublished records until ctx is cancelled,
// parking on the store's append notification when caught up. Cancellation is
// observed at record boundaries only: an in-flight publish always completes
// before the loop stops. Returns nil on clean cancellation.
func (p *LogPublisher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		from := uint64(1)
		if cp, ok := p.store.Checkpoint(p.group); ok {
			from = cp + 1
		}

		records, err := p.store.ReadFrom(from, p.batchSize)
		if err != nil {
			return fmt.Errorf("publisher: read from %d: %w", from, err)
		}
		if len(records) == 0 {
			if err := p.store.WaitForAppend(ctx, from-1); err != nil {
				return nil
			}
			continue
		}

		for _, rec := range records {
			if err := p.publishOne(ctx, rec); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

func (p *LogPublisher) publishOne(ctx context.Context, rec messagestore.Record) error {
	if p.filter(rec) {
		msg := message.NewMessage(fmt.Sprintf("%s-%d", rec.Stream, rec.Pos), rec.Payload)
		msg.SetContext(ctx)
		if err := p.publisher.Publish(p.eventQueue, msg); err != nil {
			return fmt.Errorf("publisher: enqueue record %d: %w", rec.Pos, err)
		}
		p.metrics.observePublished(rec.Pos)
	}
	// Filtered records advance the checkpoint too, otherwise an audit-only
	// prefix would be re-scanned forever.
	if err := p.store.CommitCheckpoint(p.group, rec.Pos); err != nil {
		return fmt.Errorf("publisher: checkpoint %d: %w", rec.Pos, err)
	}
	return nil
}

// Verify sanity-checks the stream before a projection rebuild: the checkpoint
// must not run past the log head and every record must be readable with
// strictly increasing positions. A failure here means the log cannot be
// trusted and startup must abort.
func (p *LogPublisher) Verify() error {
	last := p.store.LastPos()
	if cp, ok := p.store.Checkpoint(p.group); ok && cp > last {
		return &errspkg.StreamCorruptionError{
			Detail: fmt.Sprintf("checkpoint %d is past the log head %d", cp, last),
		}
	}

	var prev uint64
	from := uint64(1)
	for {
		records, err := p.store.ReadFrom(from, p.batchSize)
		if err != nil {
			if errors.Is(err, messagestore.ErrCorruptRecord) {
				return &errspkg.StreamCorruptionError{
					Detail: fmt.Sprintf("unreadable record at or after position %d", from),
				}
			}
			return err
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			if rec.Pos <= prev {
				return &errspkg.StreamCorruptionError{
					Detail: fmt.Sprintf("position %d not above predecessor %d", rec.Pos, prev),
				}
			}
			prev = rec.Pos
		}
		from = prev + 1
	}

	if prev > last {
		return &errspkg.StreamCorruptionError{
			Detail: fmt.Sprintf("records persist past the recorded head %d", last),
		}
	}
	return nil
}
