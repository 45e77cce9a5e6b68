package executor

import (
	"context"
)

// Runtime is what the Executor calls to produce field values.
//
// Execution is breadth-first. At each depth the Executor resolves sync fields
// inline through ResolveSync and queues async fields; once the depth is walked
// it calls BatchResolveAsync exactly once with every queued task. That call is
// the dispatch boundary: all resolvers of the depth have registered their
// loader keys before any backend is hit, so a store-backed runtime can serve
// the whole depth with one fetch per loader.
//
// Identifiers passed to Runtime are schema names. objectType is the parent type
// ("User", or the root type such as "RootQueryType"), field is the field name,
// source is the parent value (nil at the root) and args are already coerced.
//
// Errors become located GraphQL errors. A failure under a Non-Null type nulls
// the nearest nullable ancestor and the Executor drops queued tasks beneath it,
// so BatchResolveAsync only sees live work. The Executor never retries.
//
// Implementations must be safe for concurrent operations and must not mutate
// source or args.
type Runtime interface {
	// ResolveSync resolves a field declared sync. Returning (nil, nil) yields
	// null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of async tasks. It returns exactly
	// one result per task in task order; a failed element does not affect its
	// neighbours.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the object type of a value of an interface or union.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// ResolveUnionConcreteValue unwraps a union value before completion.
	ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error)

	// ResolveInterfaceConcreteValue unwraps an interface value before completion.
	ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error)

	// SerializeLeafValue turns a scalar or enum value into a JSON-safe Go
	// value. Enums serialize to their symbolic name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// AsyncResolveTask is one queued async field.
type AsyncResolveTask struct {
	ObjectType string
	Field      string
	// Source is nil for root fields.
	Source any
	Args   map[string]any
}

// AsyncResolveResult is the raw value of a task, or its own error.
type AsyncResolveResult struct {
	Value any
	Error error
}
