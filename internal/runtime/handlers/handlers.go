// Package handlers provides typed registration helpers so application code
// can consume messages without manual type assertions.
package handlers

import (
	"context"
	"fmt"
	"reflect"

	runtimepkg "github.com/eventspine/eventspine/internal/runtime"
	"github.com/eventspine/eventspine/internal/runtime/envelope"
	errspkg "github.com/eventspine/eventspine/internal/runtime/errors"
	metadatapkg "github.com/eventspine/eventspine/internal/runtime/metadata"
)

// Func processes one typed message together with its delivery metadata.
type Func[T envelope.Message] func(ctx context.Context, msg T, md metadatapkg.Metadata) error

// On registers a typed handler on the set under the message's own name. The
// name and kind come from a prototype of T, so T must be a pointer type whose
// zero value answers MessageName.
func On[T envelope.Message](set *runtimepkg.HandlerSet, fn Func[T]) error {
	if set == nil {
		return errspkg.ErrHandlerRequired
	}
	if fn == nil {
		return errspkg.ErrHandlerRequired
	}

	factory, err := prototypeFactory[T]()
	if err != nil {
		return err
	}
	name := factory().MessageName()

	set.On(name, func(ctx context.Context, env *envelope.Envelope) error {
		typed, ok := env.Message.(T)
		if !ok {
			return fmt.Errorf("eventspine: delivery %s carries %T, handler wants %T", env.ID, env.Message, factory())
		}
		return fn(ctx, typed, env.Metadata)
	})
	return nil
}

// MustOn is On but panics on a registration error. Intended for wiring done
// at startup.
func MustOn[T envelope.Message](set *runtimepkg.HandlerSet, fn Func[T]) {
	if err := On(set, fn); err != nil {
		panic(err)
	}
}

func prototypeFactory[T envelope.Message]() (func() T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, errspkg.ErrMessageTypeRequired
	}
	if typ.Kind() != reflect.Ptr {
		return nil, errspkg.ErrMessagePointerRequired
	}
	elem := typ.Elem()
	return func() T {
		clone := reflect.New(elem).Interface()
		return clone.(T)
	}, nil
}
