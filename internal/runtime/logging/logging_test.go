package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
)

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	log.Debug("debugging", LogFields{"k": "v"})
	log.Info("informing", nil)
	log.Warn("warning", LogFields{"elapsed": 12})
	log.Error("failing", errors.New("boom"), nil)

	out := buf.String()
	for _, want := range []string{"debugging", "informing", "warning", "failing", "boom", "elapsed=12"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSlogLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	log.With(LogFields{"queue": "router"}).Info("scoped", nil)
	if !strings.Contains(buf.String(), "queue=router") {
		t.Fatalf("expected scoped field, got:\n%s", buf.String())
	}
}

func TestWatermillRoundTrip(t *testing.T) {
	captured := watermill.NewCaptureLogger()
	log := NewWatermillLogger(captured)

	adapter := NewWatermillAdapter(log)
	adapter.Info("bridged", watermill.LogFields{"k": "v"})

	if !captured.Has(watermill.CapturedMessage{
		Level:  watermill.InfoLogLevel,
		Msg:    "bridged",
		Fields: watermill.LogFields{"k": "v"},
	}) {
		t.Fatal("expected message to round-trip through both adapters")
	}
}

func TestNilLoggerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil logger")
		}
	}()
	NewSlogLogger(nil)
}
