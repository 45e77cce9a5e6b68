package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/membergraph/internal/language"
)

// BuildFromSDL parses and validates SDL and returns the executable schema.
//
// Root fields and fields carrying @load are async; every other field is read
// from its parent value synchronously. The @load directive is stripped.
func BuildFromSDL(name, sdl string) (*Schema, error) {
	doc, err := language.LoadSchema(name, sdl)
	if err != nil {
		return nil, err
	}
	return BuildFromAST(doc)
}

// BuildFromAST converts a validated gqlparser schema.
func BuildFromAST(doc *ast.Schema) (*Schema, error) {
	if doc.Query == nil {
		return nil, fmt.Errorf("schema has no query type")
	}
	s := NewSchema("")
	s.document = doc
	s.SetQueryType(doc.Query.Name)
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
	}
	s.AddDirective(includeDirective).
		AddDirective(skipDirective)

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := doc.Types[name]
		if bt := builtinType(name); bt != nil {
			s.AddType(bt)
			continue
		}
		t, err := BuildType(s, def)
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}

	dirNames := make([]string, 0, len(doc.Directives))
	for name := range doc.Directives {
		if !isBuiltinDirective(name) {
			dirNames = append(dirNames, name)
		}
	}
	sort.Strings(dirNames)
	for _, name := range dirNames {
		s.AddDirective(buildDirective(doc.Directives[name]))
	}
	return s, nil
}

// BuildType converts one gqlparser definition. Fields of s's root types are
// async.
func BuildType(s *Schema, def *ast.Definition) (*Type, error) {
	switch def.Kind {
	case ast.Scalar:
		t := NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if url := d.Arguments.ForName("url"); url != nil && url.Value != nil {
				t.SetSpecifiedByURL(url.Value.Raw)
			}
		}
		return t, nil
	case ast.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, v := range def.EnumValues {
			ev := NewEnumValue(v.Name, v.Description)
			if reason, ok := deprecation(v.Directives); ok {
				ev.Deprecate(reason)
			}
			t.AddEnumValue(ev)
		}
		return t, nil
	case ast.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description).
			SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, f := range def.Fields {
			in, err := buildInputValue(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
			}
			t.AddInputField(in)
		}
		return t, nil
	case ast.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
		return t, nil
	case ast.Object, ast.Interface:
		kind := TypeKindObject
		if def.Kind == ast.Interface {
			kind = TypeKindInterface
		}
		t := NewType(def.Name, kind, def.Description)
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		root := s.IsRootType(def.Name)
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				continue
			}
			f := NewField(fd.Name, fd.Description, buildTypeRef(fd.Type)).
				SetAsync(root || fd.Directives.ForName(LoadDirective) != nil)
			if reason, ok := deprecation(fd.Directives); ok {
				f.Deprecate(reason)
			}
			for _, a := range fd.Arguments {
				in, err := buildInputValue(a.Name, a.Description, a.Type, a.DefaultValue, a.Directives)
				if err != nil {
					return nil, fmt.Errorf("%s.%s(%s): %w", def.Name, fd.Name, a.Name, err)
				}
				f.AddArgument(in)
			}
			t.AddField(f)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported definition kind %s for %s", def.Kind, def.Name)
}

func buildInputValue(name, description string, typ *ast.Type, def *ast.Value, dirs ast.DirectiveList) (*InputValue, error) {
	in := NewInputValue(name, description, buildTypeRef(typ))
	if def != nil {
		v, err := constValue(def)
		if err != nil {
			return nil, err
		}
		in.SetDefault(v)
	}
	if reason, ok := deprecation(dirs); ok {
		in.Deprecate(reason)
	}
	return in, nil
}

func buildDirective(def *ast.DirectiveDefinition) *Directive {
	d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
	for _, loc := range def.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, a := range def.Arguments {
		in, err := buildInputValue(a.Name, a.Description, a.Type, a.DefaultValue, a.Directives)
		if err != nil {
			in = NewInputValue(a.Name, a.Description, buildTypeRef(a.Type))
		}
		d.AddArgument(in)
	}
	return d
}

func buildTypeRef(t *ast.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if reason := d.Arguments.ForName("reason"); reason != nil && reason.Value != nil {
		return reason.Value.Raw, true
	}
	return "", true
}

// constValue converts a default value literal into the Go value the executor
// would produce for the same literal in a query.
func constValue(v *ast.Value) (any, error) {
	switch v.Kind {
	case ast.IntValue:
		return strconv.Atoi(v.Raw)
	case ast.FloatValue:
		return strconv.ParseFloat(v.Raw, 64)
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			item, err := constValue(c.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			item, err := constValue(c.Value)
			if err != nil {
				return nil, err
			}
			out[c.Name] = item
		}
		return out, nil
	}
	return nil, fmt.Errorf("default value %q is not constant", v.Raw)
}
