package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/eventspine/eventspine/internal/errstore"
	"github.com/eventspine/eventspine/internal/messagestore"
	"github.com/eventspine/eventspine/internal/runtime/envelope"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
	metadatapkg "github.com/eventspine/eventspine/internal/runtime/metadata"
	pebblestore "github.com/eventspine/eventspine/internal/storage/pebble"
)

type payCommand struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

func (*payCommand) MessageKind() envelope.Kind { return envelope.KindEntityCommand }
func (*payCommand) MessageName() string        { return "Pay" }
func (c *payCommand) EntityID() string         { return c.OrderID }

type closeBooks struct {
	Period string `json:"period"`
}

func (*closeBooks) MessageKind() envelope.Kind { return envelope.KindCommand }
func (*closeBooks) MessageName() string        { return "CloseBooks" }

type resizeImage struct {
	URL string `json:"url"`
}

func (*resizeImage) MessageKind() envelope.Kind { return envelope.KindFunctionCommand }
func (*resizeImage) MessageName() string        { return "ResizeImage" }

type orderPaid struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

func (*orderPaid) MessageKind() envelope.Kind { return envelope.KindEvent }
func (*orderPaid) MessageName() string        { return "OrderPaid" }

type imageResized struct {
	URL string `json:"url"`
}

func (*imageResized) MessageKind() envelope.Kind { return envelope.KindFunctionEvent }
func (*imageResized) MessageName() string        { return "ImageResized" }

func newTestCodec() *envelope.Codec {
	codec := envelope.NewCodec()
	codec.Register(func() envelope.Message { return &payCommand{} })
	codec.Register(func() envelope.Message { return &closeBooks{} })
	codec.Register(func() envelope.Message { return &resizeImage{} })
	codec.Register(func() envelope.Message { return &orderPaid{} })
	codec.Register(func() envelope.Message { return &imageResized{} })
	codec.Register(func() envelope.Message { return &QuarantineNotice{} })
	return codec
}

func newTestStore(t *testing.T) *messagestore.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := messagestore.Open(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func newTestErrStore(t *testing.T) *errstore.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := errstore.New(db)
	if err != nil {
		t.Fatalf("open errstore: %v", err)
	}
	return store
}

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	messages []*message.Message
	err      error
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for range messages {
		p.topics = append(p.topics, topic)
	}
	p.messages = append(p.messages, messages...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.topics))
	copy(clone, p.topics)
	return clone
}

func (p *recordingPublisher) Messages() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.messages))
	copy(clone, p.messages)
	return clone
}

type logEntry struct {
	level  string
	msg    string
	fields loggingpkg.LogFields
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) record(level, msg string, fields loggingpkg.LogFields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger { return l }

func (l *captureLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, fields)
}

func (l *captureLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, fields)
}

func (l *captureLogger) Warn(msg string, fields loggingpkg.LogFields) {
	l.record("warn", msg, fields)
}

func (l *captureLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, fields)
}

func (l *captureLogger) byLevel(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

type sentMessage struct {
	msg envelope.Message
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg envelope.Message, _ metadatapkg.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{msg: msg})
	return nil
}

func (s *recordingSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := make([]sentMessage, len(s.sent))
	copy(clone, s.sent)
	return clone
}
