package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
)

// registerQueueLoops attaches one strictly sequential consumption loop per
// queue: the ingress router queue, the entity queue, each function queue, the
// event queue, and the recorder queue.
func (s *Service) registerQueueLoops() error {
	if err := s.registerLoop("router-loop", s.Conf.RouterQueue, s.routerLoop); err != nil {
		return err
	}
	if err := s.registerLoop("entity-loop", s.Conf.EntityQueue, s.entityLoop); err != nil {
		return err
	}
	for i, queue := range s.Conf.FunctionQueues() {
		name := fmt.Sprintf("function-loop-%d", i)
		loop := s.functionLoop(queue)
		if err := s.registerLoop(name, queue, loop); err != nil {
			return err
		}
	}
	if err := s.registerLoop("event-loop", s.Conf.EventQueue, s.eventLoop); err != nil {
		return err
	}
	return s.registerLoop("recorder-loop", s.Conf.RecorderQueue, s.recorderLoop)
}

type loopFunc func(msg *message.Message, env *envelope.Envelope) (quarantined bool, err error)

// registerLoop wires one queue loop onto the Watermill router, wrapping it
// with envelope decoding and stats accounting. A payload that cannot be
// decoded is logged and dropped: redelivery cannot fix it and there is no
// envelope identity to quarantine under.
func (s *Service) registerLoop(name, queue string, loop loopFunc) error {
	if queue == "" {
		return errspkg.ErrQueueRequired
	}

	stats := newLoopStats(name, queue)
	s.loopsMu.Lock()
	s.loops = append(s.loops, &LoopInfo{Name: name, Queue: queue, Stats: stats})
	s.loopsMu.Unlock()

	s.router.AddNoPublisherHandler(
		name,
		queue,
		s.subscriber,
		func(msg *message.Message) error {
			start := time.Now()

			env, err := s.codec.Decode(msg.Payload)
			if err != nil {
				s.Logger.Error("dropping undecodable delivery", err, loggingpkg.LogFields{
					"queue":        queue,
					"message_uuid": msg.UUID,
				})
				stats.observe(time.Since(start), err, false)
				return nil
			}

			quarantined, err := loop(msg, env)
			stats.observe(time.Since(start), err, quarantined)
			return err
		},
	)
	return nil
}

// routerLoop feeds ingress deliveries to the command router. Protocol
// violations and unrecognized kinds are terminal: the delivery is consumed
// with a log line and nothing else. An audit append failure is returned so
// the delivery is redelivered once the store recovers.
func (s *Service) routerLoop(msg *message.Message, env *envelope.Envelope) (bool, error) {
	err := s.ingress.Route(msg.Context(), env)
	if err == nil {
		return false, nil
	}

	var violation *errspkg.ProtocolViolationError
	var unrecognized *errspkg.UnrecognizedKindError
	if errors.As(err, &violation) || errors.As(err, &unrecognized) {
		s.Logger.Warn("rejected ingress delivery", loggingpkg.LogFields{
			"envelope_id": env.ID,
			"reason":      err.Error(),
		})
		return false, nil
	}
	return false, err
}

// entityLoop dispatches entity-queue deliveries to the command handlers. A
// handler failure quarantines the envelope and consumes the delivery; only a
// quarantine persist failure stops the loop.
func (s *Service) entityLoop(msg *message.Message, env *envelope.Envelope) (bool, error) {
	ctx := msg.Context()
	err := s.dispatcher.Dispatch(ctx, s.commandSet, env)
	if err == nil {
		err = s.dispatcher.Dispatch(ctx, s.entitySet, env)
	}
	if err == nil {
		return false, nil
	}
	return true, s.quarantineFailed(msg, env, err)
}

func (s *Service) functionLoop(queue string) loopFunc {
	return func(msg *message.Message, env *envelope.Envelope) (bool, error) {
		if err := s.dispatcher.Dispatch(msg.Context(), s.functionSet, env); err != nil {
			return true, s.quarantineFailed(msg, env, err)
		}
		return false, nil
	}
}

// eventLoop feeds published store records to the event handlers and the live
// side of every registered projection.
func (s *Service) eventLoop(msg *message.Message, env *envelope.Envelope) (bool, error) {
	ctx := msg.Context()
	if err := s.dispatcher.Dispatch(ctx, s.eventSet, env); err != nil {
		return true, s.quarantineFailed(msg, env, err)
	}

	s.projectionsMu.Lock()
	sets := make([]*HandlerSet, len(s.projections))
	copy(sets, s.projections)
	s.projectionsMu.Unlock()

	for _, set := range sets {
		if err := s.dispatcher.Dispatch(ctx, set, env); err != nil {
			return true, s.quarantineFailed(msg, env, err)
		}
	}
	return false, nil
}

// recorderLoop records function events into the store and then dispatches
// them. Anything that is not a function event on this queue is a protocol
// violation and is dropped. The append is returned on failure so the
// delivery is retried; the envelope is only dispatched after it is durable.
func (s *Service) recorderLoop(msg *message.Message, env *envelope.Envelope) (bool, error) {
	ctx := msg.Context()

	if env.Kind() != envelope.KindFunctionEvent {
		s.metrics.observeProtocolViolation(env.Kind().String())
		s.Logger.Warn("rejected recorder delivery", loggingpkg.LogFields{
			"envelope_id":  env.ID,
			"message_kind": env.Kind().String(),
		})
		return false, nil
	}

	if _, err := s.store.Append(ctx, env.Message.MessageName(), msg.Payload); err != nil {
		return false, err
	}

	if err := s.dispatcher.Dispatch(ctx, s.functionEventSet, env); err != nil {
		return true, s.quarantineFailed(msg, env, err)
	}
	return false, nil
}

// quarantineFailed isolates a failed envelope. The returned error is nil when
// the quarantine persisted, which consumes the delivery; a persist failure
// propagates and takes the loop down.
func (s *Service) quarantineFailed(msg *message.Message, env *envelope.Envelope, cause error) error {
	queue := message.SubscribeTopicFromCtx(msg.Context())
	return s.quarantine.Isolate(msg.Context(), env, Failure{
		Reason: cause.Error(),
		Queue:  queue,
	})
}
