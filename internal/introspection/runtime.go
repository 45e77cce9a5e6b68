// Package introspection answers __schema and __type for an executable
// schema by wrapping another Runtime.
package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	executor "github.com/hanpama/membergraph/internal/executor"
	schema "github.com/hanpama/membergraph/internal/schema"
)

// Wrapper holds the runtime and the schema extended with introspection
// types. Both must be handed to the executor together.
type Wrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap extends sch with introspection and returns a Runtime that resolves
// it, delegating every other field to base.
func Wrap(base executor.Runtime, sch *schema.Schema) (*Wrapper, error) {
	extended, err := extend(sch)
	if err != nil {
		return nil, err
	}
	rt := &runtime{base: base, schema: extended}
	return &Wrapper{Runtime: rt, Schema: extended}, nil
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		if v, ok := r.schemaField(src, field); ok {
			return v, nil
		}
	case *schema.Type:
		if v, ok := r.typeField(src, field, args); ok {
			return v, nil
		}
	case *schema.TypeRef:
		if v, ok := r.wrapperField(src, field); ok {
			return v, nil
		}
	case *schema.Field:
		if v, ok := r.fieldField(src, field, args); ok {
			return v, nil
		}
	case *schema.InputValue:
		if v, ok := r.inputValueField(src, field); ok {
			return v, nil
		}
	case *schema.EnumValue:
		if v, ok := enumValueField(src, field); ok {
			return v, nil
		}
	case *schema.Directive:
		if v, ok := r.directiveField(src, field, args); ok {
			return v, nil
		}
	}

	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			return r.namedType(name), nil
		}
	}
	if strings.HasPrefix(objectType, "__") {
		return nil, fmt.Errorf("introspection field %s.%s is not supported", objectType, field)
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return r.base.ResolveUnionConcreteValue(ctx, unionTypeName, value)
}

func (r *runtime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return r.base.ResolveInterfaceConcreteValue(ctx, interfaceTypeName, value)
}

// SerializeLeafValue handles the introspection enums and delegates the rest.
func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if t := r.schema.Types[typ]; t != nil && t.Kind == schema.TypeKindEnum && strings.HasPrefix(typ, "__") {
		s := fmt.Sprint(value)
		if !t.HasEnumValue(s) {
			return nil, fmt.Errorf("cannot serialize %q as %s", s, typ)
		}
		return s, nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

// namedType returns the definition of name, or untyped nil.
func (r *runtime) namedType(name string) any {
	if t := r.schema.Types[name]; t != nil {
		return t
	}
	return nil
}

// typeValue maps a type reference to the value resolved as __Type: wrappers
// stay references, named types become their definitions.
func (r *runtime) typeValue(tr *schema.TypeRef) any {
	if tr == nil {
		return nil
	}
	if tr.Kind == schema.TypeRefKindNamed {
		return r.namedType(tr.Named)
	}
	return tr
}

func (r *runtime) schemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "types":
		out := make([]*schema.Type, 0, len(sch.Types))
		for _, t := range sch.Types {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "queryType":
		return r.namedType(sch.QueryType), true
	case "mutationType":
		return r.namedType(sch.MutationType), true
	case "subscriptionType":
		return r.namedType(sch.SubscriptionType), true
	case "directives":
		out := make([]*schema.Directive, 0, len(sch.Directives))
		for _, d := range sch.Directives {
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "description":
		return optional(sch.Description), true
	}
	return nil, false
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) (any, bool) {
	includeDeprecated := boolArg(args, "includeDeprecated")
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optional(t.Description), true
	case "specifiedByURL", "specifiedByUrl":
		if t.SpecifiedByURL == nil {
			return nil, true
		}
		return *t.SpecifiedByURL, true
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		out := []*schema.Field{}
		for _, f := range t.Fields {
			if strings.HasPrefix(f.Name, "__") || (f.IsDeprecated && !includeDeprecated) {
				continue
			}
			out = append(out, f)
		}
		return out, true
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		return r.types(t.Interfaces), true
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, true
		}
		return r.types(t.PossibleTypes), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		out := []*schema.EnumValue{}
		for _, ev := range t.EnumValues {
			if !ev.IsDeprecated || includeDeprecated {
				out = append(out, ev)
			}
		}
		return out, true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return inputValues(t.InputFields, includeDeprecated), true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	case "ofType":
		return nil, true
	}
	return nil, false
}

// wrapperField resolves __Type fields of a List or Non-Null reference.
func (r *runtime) wrapperField(tr *schema.TypeRef, field string) (any, bool) {
	if tr.Kind == schema.TypeRefKindNamed {
		if t := r.schema.Types[tr.Named]; t != nil {
			return r.typeField(t, field, nil)
		}
		return nil, true
	}
	switch field {
	case "kind":
		return string(tr.Kind), true
	case "ofType":
		return r.typeValue(tr.OfType), true
	case "name", "description", "specifiedByURL", "specifiedByUrl", "fields", "interfaces",
		"possibleTypes", "enumValues", "inputFields", "isOneOf":
		return nil, true
	}
	return nil, false
}

func (r *runtime) types(names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if t := r.schema.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *runtime) fieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optional(f.Description), true
	case "args":
		return inputValues(f.Arguments, boolArg(args, "includeDeprecated")), true
	case "type":
		return r.typeValue(f.Type), true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func (r *runtime) inputValueField(a *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return a.Name, true
	case "description":
		return optional(a.Description), true
	case "type":
		return r.typeValue(a.Type), true
	case "defaultValue":
		if a.DefaultValue == nil {
			return nil, true
		}
		return schema.ValueLiteral(a.DefaultValue), true
	case "isDeprecated":
		return a.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(a.IsDeprecated, a.DeprecationReason), true
	}
	return nil, false
}

func enumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return optional(ev.Description), true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(ev.IsDeprecated, ev.DeprecationReason), true
	}
	return nil, false
}

func (r *runtime) directiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optional(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		locs := append([]string(nil), d.Locations...)
		sort.Strings(locs)
		return locs, true
	case "args":
		return inputValues(d.Arguments, boolArg(args, "includeDeprecated")), true
	}
	return nil, false
}

func inputValues(in []*schema.InputValue, includeDeprecated bool) []*schema.InputValue {
	out := []*schema.InputValue{}
	for _, a := range in {
		if !a.IsDeprecated || includeDeprecated {
			out = append(out, a)
		}
	}
	return out
}

// optional maps the empty string to null.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deprecationReason(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
