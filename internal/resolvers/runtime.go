// Package resolvers implements executor.Runtime over a store.Store.
//
// Relation fields never fetch on their own. They register loader keys and
// return a Deferred; BatchResolveAsync dispatches the request's loaders once
// every resolver of the depth has run, then evaluates the deferred values.
// One depth of a query therefore costs at most one fetch per loader kind.
package resolvers

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/executor"
	"github.com/hanpama/membergraph/internal/loaders"
	"github.com/hanpama/membergraph/internal/schema"
	"github.com/hanpama/membergraph/internal/store"
)

const (
	queryType    = "RootQueryType"
	mutationType = "Mutation"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLoaderOptions applies opts to every loader built by WithLoaders.
func WithLoaderOptions(opts ...dataloader.Option) Option {
	return func(r *Runtime) { r.loaderOpts = append(r.loaderOpts, opts...) }
}

// Runtime serves the member schema from a store.Store, batching relation
// fields through the request's loaders.
type Runtime struct {
	store      store.Store
	schema     *schema.Schema
	reg        *Registry
	loaderOpts []dataloader.Option
}

var _ executor.Runtime = (*Runtime)(nil)

// NewRuntime returns a Runtime over st for the fields of sch.
func NewRuntime(st store.Store, sch *schema.Schema, opts ...Option) *Runtime {
	r := &Runtime{store: st, schema: sch, reg: NewRegistry()}
	for _, o := range opts {
		o(r)
	}
	registerFields(r.reg)
	r.registerQueries()
	r.registerRelations()
	r.registerMutations()
	return r
}

// Registry returns the resolver table. Entries may be replaced before the
// runtime serves its first request.
func (r *Runtime) Registry() *Registry { return r.reg }

// WithLoaders returns a copy of ctx carrying a fresh set of loaders. Call it
// once per request.
func (r *Runtime) WithLoaders(ctx context.Context) context.Context {
	return loaders.NewContext(ctx, loaders.New(r.store, r.loaderOpts...))
}

// scope makes sure ctx carries loaders. Without a request scope the loaders
// only live for one batch.
func (r *Runtime) scope(ctx context.Context) (context.Context, *loaders.Loaders) {
	if l := loaders.FromContext(ctx); l != nil {
		return ctx, l
	}
	ctx = r.WithLoaders(ctx)
	return ctx, loaders.FromContext(ctx)
}

// ResolveSync reads a physical field from the source model.
func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	a := r.reg.Accessor(objectType, field)
	if a == nil {
		return nil, fmt.Errorf("no accessor registered for %s.%s", objectType, field)
	}
	return a(source)
}

type deferredValue struct {
	idx int
	d   Deferred
}

// BatchResolveAsync runs in three phases: every task's resolver, one
// dispatch of all loaders with pending keys, then the deferred values. The
// last two repeat while deferred values return further Deferreds.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	ctx, l := r.scope(ctx)

	var waiting []deferredValue
	settle := func(i int, v any, err error) {
		if d, ok := v.(Deferred); ok && err == nil {
			waiting = append(waiting, deferredValue{idx: i, d: d})
			return
		}
		results[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}

	for i, t := range tasks {
		res := r.reg.Resolver(t.ObjectType, t.Field)
		if res == nil {
			results[i] = executor.AsyncResolveResult{Error: fmt.Errorf("no resolver registered for %s.%s", t.ObjectType, t.Field)}
			continue
		}
		v, err := res(ctx, t.Source, t.Args)
		settle(i, v, err)
	}

	for len(waiting) > 0 {
		l.Dispatch(ctx)
		round := waiting
		waiting = nil
		for _, w := range round {
			v, err := w.d(ctx)
			settle(w.idx, v, err)
		}
	}
	return results
}

// ResolveType is never reached: the schema declares no interfaces or unions.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return "", fmt.Errorf("cannot resolve %T as %s: no abstract types are served", value, abstractType)
}

func (r *Runtime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return value, nil
}

func (r *Runtime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return value, nil
}

// SerializeLeafValue renders UUIDs canonically, enums by name and builtin
// scalars as their JSON kinds.
func (r *Runtime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch scalarOrEnumTypeName {
	case "UUID":
		switch v := value.(type) {
		case uuid.UUID:
			return v.String(), nil
		case string:
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("invalid UUID %q", v)
			}
			return id.String(), nil
		}
	case "Int":
		if n, ok := toInt64(value); ok {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("cannot serialize %d as Int: out of 32-bit range", n)
			}
			return int(n), nil
		}
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		}
		if n, ok := toInt64(value); ok {
			return float64(n), nil
		}
	case "String", "ID":
		if s, ok := stringKind(value); ok {
			return s, nil
		}
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	default:
		if t := r.schema.Types[scalarOrEnumTypeName]; t != nil && t.Kind == schema.TypeKindEnum {
			s, ok := stringKind(value)
			if ok && t.HasEnumValue(s) {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot serialize %v (%T) as %s", value, value, scalarOrEnumTypeName)
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// stringKind accepts strings and named string types such as
// store.MemberTypeID.
func stringKind(value any) (string, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}
