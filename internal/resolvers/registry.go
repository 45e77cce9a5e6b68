package resolvers

import (
	"context"
	"fmt"
)

// Resolver produces the raw value for one async field. It may return a
// Deferred to read a loader result after the current depth has dispatched.
type Resolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Deferred is evaluated after every resolver of the depth has registered its
// loader keys and the loaders have been dispatched. It may return another
// Deferred, which is evaluated after the next dispatch round.
type Deferred func(ctx context.Context) (any, error)

// Accessor reads a physical property from a source value. It never does I/O.
type Accessor func(source any) (any, error)

// Registry maps "Type.field" to resolvers and accessors.
type Registry struct {
	resolvers map[string]Resolver
	accessors map[string]Accessor
}

func NewRegistry() *Registry {
	return &Registry{
		resolvers: make(map[string]Resolver),
		accessors: make(map[string]Accessor),
	}
}

func fieldKey(objectType, field string) string { return objectType + "." + field }

// Resolve registers r for objectType.field.
func (reg *Registry) Resolve(objectType, field string, r Resolver) *Registry {
	reg.resolvers[fieldKey(objectType, field)] = r
	return reg
}

// Access registers a for objectType.field.
func (reg *Registry) Access(objectType, field string, a Accessor) *Registry {
	reg.accessors[fieldKey(objectType, field)] = a
	return reg
}

// Resolver returns the resolver for objectType.field, or nil.
func (reg *Registry) Resolver(objectType, field string) Resolver {
	return reg.resolvers[fieldKey(objectType, field)]
}

// Accessor returns the accessor for objectType.field, or nil.
func (reg *Registry) Accessor(objectType, field string) Accessor {
	return reg.accessors[fieldKey(objectType, field)]
}

// accessor adapts a typed getter. A source of another type is a wiring bug
// in the schema and is reported as a field error.
func accessor[T any](get func(T) any) Accessor {
	return func(source any) (any, error) {
		v, ok := source.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("source must be %T, got %T", zero, source)
		}
		return get(v), nil
	}
}
