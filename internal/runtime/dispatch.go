package runtime

import (
	"context"
	"time"

	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
)

// HandlerFunc processes one delivered envelope. Any returned error propagates
// to the queue loop, which routes it to quarantine.
type HandlerFunc func(ctx context.Context, env *envelope.Envelope) error

// HandlerSet groups the handlers consuming one queue. A set expects exactly
// one message kind; deliveries of any other kind are filtered out without an
// error, which is how mixed traffic on a shared queue is tolerated.
type HandlerSet struct {
	kind     envelope.Kind
	handlers map[string][]HandlerFunc
}

func NewHandlerSet(kind envelope.Kind) *HandlerSet {
	return &HandlerSet{kind: kind, handlers: make(map[string][]HandlerFunc)}
}

// Kind returns the message kind this set consumes.
func (s *HandlerSet) Kind() envelope.Kind { return s.kind }

// On registers a handler for a message name. Multiple handlers per name run
// in registration order.
func (s *HandlerSet) On(name string, fn HandlerFunc) *HandlerSet {
	if fn == nil {
		panic(errspkg.ErrHandlerRequired)
	}
	s.handlers[name] = append(s.handlers[name], fn)
	return s
}

// Merge appends every handler of other into s. Both sets must expect the
// same kind.
func (s *HandlerSet) Merge(other *HandlerSet) *HandlerSet {
	if other == nil {
		return s
	}
	for name, fns := range other.handlers {
		s.handlers[name] = append(s.handlers[name], fns...)
	}
	return s
}

func (s *HandlerSet) match(env *envelope.Envelope) []HandlerFunc {
	if s == nil || env == nil || env.Message == nil {
		return nil
	}
	if env.Kind() != s.kind {
		return nil
	}
	return s.handlers[env.Message.MessageName()]
}

// Dispatcher invokes the matching handlers for a delivery and surfaces
// slow-handler conditions without altering control flow.
type Dispatcher struct {
	slowWarning time.Duration
	logger      loggingpkg.ServiceLogger
}

func NewDispatcher(slowWarning time.Duration, logger loggingpkg.ServiceLogger) *Dispatcher {
	if slowWarning <= 0 {
		slowWarning = 10 * time.Second
	}
	return &Dispatcher{slowWarning: slowWarning, logger: logger}
}

// Dispatch runs the handlers of set that match the envelope, synchronously
// with respect to this delivery. A mismatched kind or an unregistered name is
// silently ignored. When the invocation exceeds the slow threshold one
// warning is logged naming the kind and elapsed seconds; the warning never
// affects the delivery outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, set *HandlerSet, env *envelope.Envelope) error {
	handlers := set.match(env)
	if len(handlers) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	for _, fn := range handlers {
		if err = fn(ctx, env); err != nil {
			break
		}
	}
	elapsed := time.Since(start)

	if elapsed >= d.slowWarning && d.logger != nil {
		d.logger.Warn("slow handler invocation", loggingpkg.LogFields{
			"message_kind": env.Kind().String(),
			"message_name": env.Message.MessageName(),
			"elapsed_s":    elapsed.Seconds(),
		})
	}
	return err
}
