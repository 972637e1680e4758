package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventspine/eventspine/internal/errstore"
	"github.com/eventspine/eventspine/internal/messagestore"
	configpkg "github.com/eventspine/eventspine/internal/runtime/config"
	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
	metadatapkg "github.com/eventspine/eventspine/internal/runtime/metadata"
	transportpkg "github.com/eventspine/eventspine/internal/runtime/transport"
	pebblestore "github.com/eventspine/eventspine/internal/storage/pebble"
	"github.com/eventspine/eventspine/internal/viewstore"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to accept the defaults.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	TransportFactory          transportpkg.Factory
	// Notification builds the message sent after an envelope is quarantined.
	Notification NotificationFunc
	// PublishFilter overrides the publish policy. The audit exclusion is
	// always applied on top of it.
	PublishFilter FilterFunc
}

// Service wires the transport, the durable stores, the command router, the
// quarantine, and the log publisher behind one Watermill router. Register
// handlers and projections on the returned Service before calling Start.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	db     *pebblestore.DB
	store  *messagestore.Store
	errors *errstore.Store
	views  viewstore.Store

	codec        *envelope.Codec
	metrics      *PipelineMetrics
	dispatcher   *Dispatcher
	ingress      *Router
	quarantine   *Quarantine
	sender       *DualSender
	logPublisher *LogPublisher

	commandSet       *HandlerSet
	entitySet        *HandlerSet
	functionSet      *HandlerSet
	eventSet         *HandlerSet
	functionEventSet *HandlerSet

	projections   []*HandlerSet
	projectionsMu sync.Mutex

	loops   []*LoopInfo
	loopsMu sync.RWMutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService constructs a Service for the supplied configuration. Register
// handlers on the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	normalized := conf.Normalize()
	conf = &normalized
	if err := conf.Validate(); err != nil {
		panic(err)
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating event service",
		loggingpkg.LogFields{
			"pubsub_system": conf.PubSubSystem,
			"config":        conf,
		})

	// Audit records, quarantine entries, and checkpoints must survive a
	// machine crash, so every commit goes through a WAL fsync.
	db, err := pebblestore.Open(pebblestore.Options{DataDir: conf.DataDir, Sync: true})
	if err != nil {
		panic(err)
	}
	store, err := messagestore.Open(db)
	if err != nil {
		panic(err)
	}
	errStore, err := errstore.New(db)
	if err != nil {
		panic(err)
	}
	views, err := viewstore.NewPebbleStore(db)
	if err != nil {
		panic(err)
	}

	s := &Service{
		Conf:             conf,
		Logger:           log,
		db:               db,
		store:            store,
		errors:           errStore,
		views:            views,
		codec:            envelope.NewCodec(),
		dispatcher:       NewDispatcher(conf.SlowHandlerWarning, log),
		commandSet:       NewHandlerSet(envelope.KindCommand),
		entitySet:        NewHandlerSet(envelope.KindEntityCommand),
		functionSet:      NewHandlerSet(envelope.KindFunctionCommand),
		eventSet:         NewHandlerSet(envelope.KindEvent),
		functionEventSet: NewHandlerSet(envelope.KindFunctionEvent),
	}

	// The default quarantine notification must be decodable on the recorder
	// queue without the application registering it.
	s.codec.Register(func() envelope.Message { return &QuarantineNotice{} })

	if conf.MetricsEnabled {
		s.metrics = NewPipelineMetrics(prometheus.DefaultRegisterer)
		if err := s.metrics.Register(); err != nil {
			panic(err)
		}
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, conf, wmLogger)
	if err != nil {
		panic(err)
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber

	s.ingress, err = NewRouter(RouterConfig{
		Store:          store,
		Publisher:      s.publisher,
		Codec:          s.codec,
		EntityQueue:    conf.EntityQueue,
		FunctionQueues: conf.FunctionQueues(),
		Metrics:        s.metrics,
		Logger:         log,
	})
	if err != nil {
		panic(err)
	}

	s.sender, err = NewDualSender(s.publisher, s.codec, conf.RouterQueue, conf.RecorderQueue)
	if err != nil {
		panic(err)
	}

	s.quarantine, err = NewQuarantine(QuarantineConfig{
		Errors:  errStore,
		Codec:   s.codec,
		Sender:  s.sender,
		Notify:  deps.Notification,
		Metrics: s.metrics,
		Logger:  log,
	})
	if err != nil {
		panic(err)
	}

	filter, err := s.buildPublishFilter(deps.PublishFilter)
	if err != nil {
		panic(err)
	}
	s.logPublisher, err = NewLogPublisher(PublisherConfig{
		Store:           store,
		Publisher:       s.publisher,
		EventQueue:      conf.EventQueue,
		Filter:          filter,
		CheckpointGroup: conf.CheckpointGroup,
		Metrics:         s.metrics,
		Logger:          log,
	})
	if err != nil {
		panic(err)
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		panic(err)
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	s.registerConfiguredMiddlewares(deps)

	if err := s.registerQueueLoops(); err != nil {
		panic(err)
	}

	return s
}

// buildPublishFilter composes the override or configured CEL expression with
// the audit exclusion, which always applies.
func (s *Service) buildPublishFilter(override FilterFunc) (FilterFunc, error) {
	if override != nil {
		return AllOf(DefaultPublishFilter, override), nil
	}
	if expr := s.Conf.PublishFilterExpr; expr != "" {
		celFilter, err := NewCELPublishFilter(expr)
		if err != nil {
			return nil, fmt.Errorf("publish filter expression: %w", err)
		}
		return AllOf(DefaultPublishFilter, celFilter), nil
	}
	return DefaultPublishFilter, nil
}

// RegisterMessage adds a message factory to the envelope codec so deliveries
// carrying its name can be decoded. Every message type a handler consumes or
// a sender emits must be registered before traffic flows.
func (s *Service) RegisterMessage(factory func() envelope.Message) {
	s.codec.Register(factory)
}

// OnCommand registers a handler for a plain command consumed on the entity queue.
func (s *Service) OnCommand(name string, fn HandlerFunc) { s.commandSet.On(name, fn) }

// OnEntityCommand registers a handler for an entity-addressed command.
func (s *Service) OnEntityCommand(name string, fn HandlerFunc) { s.entitySet.On(name, fn) }

// OnFunctionCommand registers a handler for a stateless command consumed on
// whichever function queue the router picked.
func (s *Service) OnFunctionCommand(name string, fn HandlerFunc) { s.functionSet.On(name, fn) }

// OnEvent registers a handler for events delivered on the event queue.
func (s *Service) OnEvent(name string, fn HandlerFunc) { s.eventSet.On(name, fn) }

// OnFunctionEvent registers a handler for function events delivered on the
// recorder queue.
func (s *Service) OnFunctionEvent(name string, fn HandlerFunc) { s.functionEventSet.On(name, fn) }

// RegisterProjection adds an event handler set that is both replayed from the
// store at startup and fed live deliveries from the event queue. Projection
// handlers must be idempotent.
func (s *Service) RegisterProjection(set *HandlerSet) {
	if set == nil {
		return
	}
	s.projectionsMu.Lock()
	s.projections = append(s.projections, set)
	s.projectionsMu.Unlock()
}

// Views returns the document store projections write through.
func (s *Service) Views() viewstore.Store { return s.views }

// Errors returns the quarantine container for inspection and manual replay.
func (s *Service) Errors() *errstore.Store { return s.errors }

// Sender returns the dual-channel sender used to submit messages into the
// pipeline from outside a queue loop.
func (s *Service) Sender() Sender { return s.sender }

// Send submits a message into the pipeline: commands go to the router queue,
// function events to the recorder queue.
func (s *Service) Send(ctx context.Context, msg envelope.Message, md metadatapkg.Metadata) error {
	return s.sender.Send(ctx, msg, md)
}

// Emit appends an event to the message store under a stream named after the
// message. The log publisher forwards it to the event queue from there.
func (s *Service) Emit(ctx context.Context, msg envelope.Message, md metadatapkg.Metadata) error {
	if msg == nil {
		return errspkg.ErrEnvelopeRequired
	}
	kind := msg.MessageKind()
	if kind != envelope.KindEvent && kind != envelope.KindFunctionEvent {
		return &errspkg.ProtocolViolationError{Kind: kind.String(), Queue: "emit"}
	}
	env := envelope.New(msg, md)
	payload, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	_, err = s.store.Append(ctx, msg.MessageName(), payload)
	return err
}

// Rebuild replays the store into the registered projections. Start calls this
// before consuming queues; it is exposed for offline rebuilds.
func (s *Service) Rebuild(ctx context.Context) error {
	s.projectionsMu.Lock()
	sets := make([]*HandlerSet, len(s.projections))
	copy(sets, s.projections)
	s.projectionsMu.Unlock()

	rebuilder, err := NewRebuilder(RebuilderConfig{
		Store:      s.store,
		Codec:      s.codec,
		Verifier:   s.logPublisher,
		Dispatcher: s.dispatcher,
		Sets:       sets,
		Metrics:    s.metrics,
		Logger:     s.Logger,
	})
	if err != nil {
		return err
	}
	return rebuilder.Rebuild(ctx)
}

// Start rebuilds projections, starts the log publisher, and runs the queue
// loops until the context is cancelled. A rebuild failure aborts startup
// before any queue is consumed.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Rebuild(ctx); err != nil {
		return err
	}

	s.startHTTPServers()

	publisherDone := make(chan error, 1)
	go func() {
		publisherDone <- s.logPublisher.Run(ctx)
	}()

	runErr := routerRun(s.router, ctx)

	if err := <-publisherDone; err != nil && runErr == nil {
		runErr = err
	}
	if err := s.db.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Loops reports the per-queue consumption loops and their live stats.
func (s *Service) Loops() []*LoopInfo {
	s.loopsMu.RLock()
	defer s.loopsMu.RUnlock()
	loops := make([]*LoopInfo, len(s.loops))
	copy(loops, s.loops)
	return loops
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			panic(fmt.Sprintf("failed to register middleware %s: %v", name, err))
		}
	}
}

func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
