package runtime

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/eventspine/eventspine/internal/messagestore"
	"github.com/eventspine/eventspine/internal/runtime/jsoncodec"
)

// FilterFunc decides whether the publisher forwards a store record to the
// event-processing queue.
type FilterFunc func(rec messagestore.Record) bool

// DefaultPublishFilter excludes the audit stream and includes everything
// else: commands are audited but never re-emitted as processing traffic.
func DefaultPublishFilter(rec messagestore.Record) bool {
	return rec.Stream != messagestore.AuditStream
}

// AllOf combines filters conjunctively; a record passes only when every
// filter passes. Nil filters are skipped.
func AllOf(filters ...FilterFunc) FilterFunc {
	return func(rec messagestore.Record) bool {
		for _, f := range filters {
			if f != nil && !f(rec) {
				return false
			}
		}
		return true
	}
}

// NewCELPublishFilter compiles a CEL expression over a record's attributes
// so operators can refine the publish policy without a rebuild. The
// expression sees:
//
//	stream   string  the record's stream key
//	position int     the record's global append position
//	size     int     payload size in bytes
//	text     string  payload as text
//	json     dyn     payload parsed as JSON, if it parses
//
// An empty expression yields a filter that passes everything; compose with
// DefaultPublishFilter to keep the audit exclusion.
func NewCELPublishFilter(expr string) (FilterFunc, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return func(messagestore.Record) bool { return true }, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("stream", cel.StringType),
		cel.Variable("position", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	return func(rec messagestore.Record) bool {
		var jsonObj any
		_ = jsoncodec.Unmarshal(rec.Payload, &jsonObj)
		out, _, err := prog.Eval(map[string]any{
			"stream":   rec.Stream,
			"position": int64(rec.Pos),
			"size":     int64(len(rec.Payload)),
			"text":     string(rec.Payload),
			"json":     jsonObj,
		})
		if err != nil {
			// An expression that errors on a record fails closed.
			return false
		}
		pass, ok := out.Value().(bool)
		return ok && pass
	}, nil
}
