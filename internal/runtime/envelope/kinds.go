package envelope

// Kind is the closed set of message categories the pipeline routes. The
// router's branch over Kind is exhaustive: anything outside this enum is an
// UnrecognizedKindError, never a silent fallthrough.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindCommand is a request to do something, not addressed to a
	// particular entity and not a stateless function call.
	KindCommand
	// KindEntityCommand targets one addressable entity and carries its id.
	KindEntityCommand
	// KindFunctionCommand is a stateless command with no entity identity;
	// routed to one of the function-processing queues.
	KindFunctionCommand
	// KindEvent is a record of something that has happened.
	KindEvent
	// KindFunctionEvent is a stateless event emitted by function handlers,
	// consumed by the recorder queue.
	KindFunctionEvent
)

var kindNames = map[Kind]string{
	KindCommand:         "command",
	KindEntityCommand:   "entity_command",
	KindFunctionCommand: "function_command",
	KindEvent:           "event",
	KindFunctionEvent:   "function_event",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindFromString parses the wire representation of a Kind.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// IsCommand reports whether k is any of the command variants. All commands
// are audited by the router before being routed.
func (k Kind) IsCommand() bool {
	return k == KindCommand || k == KindEntityCommand || k == KindFunctionCommand
}

// Message is one domain message. Implementations are plain structs (or
// protobuf messages) that declare their category and schema name.
type Message interface {
	MessageKind() Kind
	MessageName() string
}

// EntityAddressed is implemented by entity commands: messages that target one
// addressable entity.
type EntityAddressed interface {
	EntityID() string
}
