package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	"github.com/eventspine/eventspine/internal/errstore"
)

func newTestQuarantine(t *testing.T, store *errstore.Store, sender Sender, log *captureLogger) *Quarantine {
	t.Helper()
	q, err := NewQuarantine(QuarantineConfig{
		Errors: store,
		Codec:  newTestCodec(),
		Sender: sender,
		Logger: log,
	})
	if err != nil {
		t.Fatalf("quarantine init failed: %v", err)
	}
	return q
}

func TestNewQuarantineValidations(t *testing.T) {
	store := newTestErrStore(t)
	codec := newTestCodec()
	sender := &recordingSender{}

	if _, err := NewQuarantine(QuarantineConfig{Codec: codec, Sender: sender}); !errors.Is(err, errspkg.ErrStoreRequired) {
		t.Fatalf("expected store required, got %v", err)
	}
	if _, err := NewQuarantine(QuarantineConfig{Errors: store, Sender: sender}); !errors.Is(err, errspkg.ErrCodecRequired) {
		t.Fatalf("expected codec required, got %v", err)
	}
	if _, err := NewQuarantine(QuarantineConfig{Errors: store, Codec: codec}); !errors.Is(err, errspkg.ErrPublisherRequired) {
		t.Fatalf("expected publisher required, got %v", err)
	}
}

func TestIsolatePersistsAndNotifies(t *testing.T) {
	store := newTestErrStore(t)
	sender := &recordingSender{}
	log := &captureLogger{}
	q := newTestQuarantine(t, store, sender, log)

	codec := newTestCodec()
	env := envelope.New(&payCommand{OrderID: "42", Amount: 7}, nil)
	failure := Failure{Reason: "handler exploded", Queue: "entity-commands"}

	if err := q.Isolate(context.Background(), env, failure); err != nil {
		t.Fatalf("isolate failed: %v", err)
	}

	entry, err := store.Get(env.ID)
	if err != nil {
		t.Fatalf("expected a stored entry: %v", err)
	}
	if entry.Reason != "handler exploded" || entry.OriginalQueue != "entity-commands" {
		t.Fatalf("entry mismatch: %+v", entry)
	}
	if entry.QuarantinedAt.IsZero() {
		t.Fatal("expected a quarantine timestamp")
	}
	stored, err := codec.Decode(entry.Envelope)
	if err != nil {
		t.Fatalf("stored envelope should decode: %v", err)
	}
	if stored.ID != env.ID {
		t.Fatalf("stored envelope id = %s, want %s", stored.ID, env.ID)
	}

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sent))
	}
	notice, ok := sent[0].msg.(*QuarantineNotice)
	if !ok {
		t.Fatalf("notification is %T, want *QuarantineNotice", sent[0].msg)
	}
	if notice.EnvelopeID != env.ID || notice.OriginalQueue != "entity-commands" {
		t.Fatalf("notice mismatch: %+v", notice)
	}

	if warns := log.byLevel("warn"); len(warns) != 1 {
		t.Fatalf("expected one warn entry, got %d", len(warns))
	}
}

func TestIsolateNotificationFailureIsTolerated(t *testing.T) {
	store := newTestErrStore(t)
	sender := &recordingSender{err: errors.New("broker down")}
	log := &captureLogger{}
	q := newTestQuarantine(t, store, sender, log)

	env := envelope.New(&payCommand{OrderID: "42"}, nil)
	if err := q.Isolate(context.Background(), env, Failure{Reason: "boom", Queue: "entity-commands"}); err != nil {
		t.Fatalf("notification failure must not surface: %v", err)
	}
	if _, err := store.Get(env.ID); err != nil {
		t.Fatalf("entry must still be persisted: %v", err)
	}
	if errs := log.byLevel("error"); len(errs) != 1 {
		t.Fatalf("expected one error log for the failed notification, got %d", len(errs))
	}
}

func TestIsolateCustomNotification(t *testing.T) {
	store := newTestErrStore(t)
	sender := &recordingSender{}
	log := &captureLogger{}

	notified := 0
	q, err := NewQuarantine(QuarantineConfig{
		Errors: store,
		Codec:  newTestCodec(),
		Sender: sender,
		Logger: log,
		Notify: func(env *envelope.Envelope, failure Failure) envelope.Message {
			notified++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("quarantine init failed: %v", err)
	}

	env := envelope.New(&payCommand{OrderID: "42"}, nil)
	if err := q.Isolate(context.Background(), env, Failure{Reason: "boom", Queue: "q"}); err != nil {
		t.Fatalf("isolate failed: %v", err)
	}
	if notified != 1 {
		t.Fatalf("custom notify invoked %d times, want 1", notified)
	}
	if len(sender.Sent()) != 0 {
		t.Fatal("nil notice must suppress the outbound notification")
	}
}

func TestIsolateNilEnvelope(t *testing.T) {
	q := newTestQuarantine(t, newTestErrStore(t), &recordingSender{}, &captureLogger{})
	if err := q.Isolate(context.Background(), nil, Failure{}); !errors.Is(err, errspkg.ErrEnvelopeRequired) {
		t.Fatalf("expected envelope required, got %v", err)
	}
}
