package handlers

import (
	"context"
	"errors"
	"testing"

	runtimepkg "github.com/eventspine/eventspine/internal/runtime"
	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	metadatapkg "github.com/eventspine/eventspine/internal/runtime/metadata"
)

type orderPaid struct {
	OrderID string `json:"order_id"`
}

func (*orderPaid) MessageKind() envelope.Kind { return envelope.KindEvent }
func (*orderPaid) MessageName() string        { return "OrderPaid" }

type orderShipped struct {
	OrderID string `json:"order_id"`
}

func (*orderShipped) MessageKind() envelope.Kind { return envelope.KindEvent }
func (*orderShipped) MessageName() string        { return "OrderShipped" }

type valueMessage struct{}

func (valueMessage) MessageKind() envelope.Kind { return envelope.KindEvent }
func (valueMessage) MessageName() string        { return "ValueMessage" }

func TestOnRegistersUnderMessageName(t *testing.T) {
	set := runtimepkg.NewHandlerSet(envelope.KindEvent)
	var got *orderPaid
	err := On(set, func(_ context.Context, msg *orderPaid, _ metadatapkg.Metadata) error {
		got = msg
		return nil
	})
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	d := runtimepkg.NewDispatcher(0, nil)
	env := envelope.New(&orderPaid{OrderID: "42"}, nil)
	if err := d.Dispatch(context.Background(), set, env); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if got == nil || got.OrderID != "42" {
		t.Fatalf("handler saw %+v, want order 42", got)
	}
}

func TestOnIgnoresOtherMessages(t *testing.T) {
	set := runtimepkg.NewHandlerSet(envelope.KindEvent)
	calls := 0
	if err := On(set, func(context.Context, *orderPaid, metadatapkg.Metadata) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	d := runtimepkg.NewDispatcher(0, nil)
	if err := d.Dispatch(context.Background(), set, envelope.New(&orderShipped{OrderID: "1"}, nil)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if calls != 0 {
		t.Fatal("handler must not run for a different message name")
	}
}

func TestOnPassesDeliveryMetadata(t *testing.T) {
	set := runtimepkg.NewHandlerSet(envelope.KindEvent)
	var seen metadatapkg.Metadata
	if err := On(set, func(_ context.Context, _ *orderPaid, md metadatapkg.Metadata) error {
		seen = md
		return nil
	}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	md := metadatapkg.Metadata{"origin": "unit"}
	d := runtimepkg.NewDispatcher(0, nil)
	if err := d.Dispatch(context.Background(), set, envelope.New(&orderPaid{}, md)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if seen["origin"] != "unit" {
		t.Fatalf("metadata not delivered: %v", seen)
	}
}

func TestOnRejectsNilArguments(t *testing.T) {
	set := runtimepkg.NewHandlerSet(envelope.KindEvent)
	if err := On[*orderPaid](nil, func(context.Context, *orderPaid, metadatapkg.Metadata) error { return nil }); !errors.Is(err, errspkg.ErrHandlerRequired) {
		t.Fatalf("expected handler required for nil set, got %v", err)
	}
	if err := On[*orderPaid](set, nil); !errors.Is(err, errspkg.ErrHandlerRequired) {
		t.Fatalf("expected handler required for nil func, got %v", err)
	}
}

func TestOnRejectsNonPointerType(t *testing.T) {
	set := runtimepkg.NewHandlerSet(envelope.KindEvent)
	err := On(set, func(context.Context, valueMessage, metadatapkg.Metadata) error { return nil })
	if !errors.Is(err, errspkg.ErrMessagePointerRequired) {
		t.Fatalf("expected pointer required, got %v", err)
	}
}

func TestMustOnPanicsOnError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	MustOn[*orderPaid](nil, func(context.Context, *orderPaid, metadatapkg.Metadata) error { return nil })
}
