package eventspine

import (
	"github.com/eventspine/eventspine/internal/errstore"
	"github.com/eventspine/eventspine/internal/messagestore"
	runtimepkg "github.com/eventspine/eventspine/internal/runtime"
	configpkg "github.com/eventspine/eventspine/internal/runtime/config"
	envelopepkg "github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	handlerpkg "github.com/eventspine/eventspine/internal/runtime/handlers"
	idspkg "github.com/eventspine/eventspine/internal/runtime/ids"
	jsoncodec "github.com/eventspine/eventspine/internal/runtime/jsoncodec"
	loggingpkg "github.com/eventspine/eventspine/internal/runtime/logging"
	metadatapkg "github.com/eventspine/eventspine/internal/runtime/metadata"
	transportpkg "github.com/eventspine/eventspine/internal/runtime/transport"
	"github.com/eventspine/eventspine/internal/viewstore"
	modtransport "github.com/eventspine/eventspine/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Transport           = transportpkg.Transport
	TransportFactory    = transportpkg.Factory

	Kind     = envelopepkg.Kind
	Message  = envelopepkg.Message
	Envelope = envelopepkg.Envelope
	Codec    = envelopepkg.Codec

	HandlerFunc = runtimepkg.HandlerFunc
	HandlerSet  = runtimepkg.HandlerSet
	Dispatcher  = runtimepkg.Dispatcher

	Router           = runtimepkg.Router
	RouterConfig     = runtimepkg.RouterConfig
	Quarantine       = runtimepkg.Quarantine
	QuarantineConfig = runtimepkg.QuarantineConfig
	QuarantineNotice = runtimepkg.QuarantineNotice
	Failure          = runtimepkg.Failure
	NotificationFunc = runtimepkg.NotificationFunc
	Sender           = runtimepkg.Sender
	LogPublisher     = runtimepkg.LogPublisher
	PublisherConfig  = runtimepkg.PublisherConfig
	Rebuilder        = runtimepkg.Rebuilder
	RebuilderConfig  = runtimepkg.RebuilderConfig
	FilterFunc       = runtimepkg.FilterFunc
	PipelineMetrics  = runtimepkg.PipelineMetrics

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	LoopInfo  = runtimepkg.LoopInfo
	LoopStats = runtimepkg.LoopStats

	Record         = messagestore.Record
	QuarantineItem = errstore.Entry
	ViewStore      = viewstore.Store

	ProtocolViolationError = errspkg.ProtocolViolationError
	UnrecognizedKindError  = errspkg.UnrecognizedKindError
	AuditAppendError       = errspkg.AuditAppendError
	QuarantinePersistError = errspkg.QuarantinePersistError
	StreamCorruptionError  = errspkg.StreamCorruptionError

	// Transport capabilities
	Capabilities = modtransport.Capabilities

	// Modular transport types
	TransportBuilder         = modtransport.Builder
	TransportConfig          = modtransport.Config
	TransportRegistry        = modtransport.Registry
	TransportQueueIntrospect = modtransport.QueueIntrospector
)

// Message kinds.
const (
	KindCommand         = envelopepkg.KindCommand
	KindEntityCommand   = envelopepkg.KindEntityCommand
	KindFunctionCommand = envelopepkg.KindFunctionCommand
	KindEvent           = envelopepkg.KindEvent
	KindFunctionEvent   = envelopepkg.KindFunctionEvent
)

// AuditStream is the store stream every routed command is appended to.
const AuditStream = messagestore.AuditStream

var (
	NewService = runtimepkg.NewService

	NewEnvelope = envelopepkg.New
	NewCodec    = envelopepkg.NewCodec

	NewHandlerSet = runtimepkg.NewHandlerSet
	NewDispatcher = runtimepkg.NewDispatcher

	NewRouter       = runtimepkg.NewRouter
	NewQuarantine   = runtimepkg.NewQuarantine
	NewLogPublisher = runtimepkg.NewLogPublisher
	NewRebuilder    = runtimepkg.NewRebuilder

	DefaultPublishFilter = runtimepkg.DefaultPublishFilter
	AllOf                = runtimepkg.AllOf
	NewCELPublishFilter  = runtimepkg.NewCELPublishFilter
	DefaultNotification  = runtimepkg.DefaultNotification

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode
	Decode    = jsoncodec.Decode

	ErrServiceRequired   = errspkg.ErrServiceRequired
	ErrStoreRequired     = errspkg.ErrStoreRequired
	ErrPublisherRequired = errspkg.ErrPublisherRequired
	ErrQueueRequired     = errspkg.ErrQueueRequired
	ErrCodecRequired     = errspkg.ErrCodecRequired
	ErrHandlerRequired   = errspkg.ErrHandlerRequired
	ErrEnvelopeRequired  = errspkg.ErrEnvelopeRequired
	ErrNoFunctionQueues  = errspkg.ErrNoFunctionQueues
	ErrUnregisteredName  = errspkg.ErrUnregisteredName

	NewSlogLogger      = loggingpkg.NewSlogLogger
	NewWatermillLogger = loggingpkg.NewWatermillLogger

	NewMetadata = metadatapkg.New

	NewID = idspkg.NewID

	// Transport capabilities
	GetCapabilities = modtransport.GetCapabilities

	// Modular transport registry. Import individual transports via
	// _ "github.com/eventspine/eventspine/transport/kafka" and so on.
	DefaultTransportRegistry = modtransport.DefaultRegistry
	RegisterTransport        = modtransport.Register
	BuildTransport           = modtransport.Build
)

// Metadata keys - use these constants for standard metadata fields.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyMessageName   = metadatapkg.KeyMessageName
	MetadataKeyMessageKind   = metadatapkg.KeyMessageKind
)

// On registers a typed handler for the message type T on the given set.
func On[T Message](set *HandlerSet, fn handlerpkg.Func[T]) error {
	return handlerpkg.On(set, fn)
}

// MustOn is On but panics on a registration error.
func MustOn[T Message](set *HandlerSet, fn handlerpkg.Func[T]) {
	handlerpkg.MustOn(set, fn)
}
