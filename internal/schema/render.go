package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces SDL from the Schema.
//
// The schema block comes first, followed by types and directives sorted by
// name. Builtin scalars are omitted. Async fields outside the root types are
// rendered with @load so the output can be fed back to BuildFromSDL.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	r := &renderer{schema: s}
	r.schemaBlock()

	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		if builtinType(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.typ(s.Types[name])
	}

	if r.usesLoad {
		r.b.WriteString("directive @" + LoadDirective + " on FIELD_DEFINITION\n\n")
	}
	dirNames := make([]string, 0, len(s.Directives))
	for name, d := range s.Directives {
		if d == includeDirective || d == skipDirective || isBuiltinDirective(name) {
			continue
		}
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	for _, name := range dirNames {
		r.directive(s.Directives[name])
	}

	return strings.TrimRight(r.b.String(), "\n") + "\n"
}

type renderer struct {
	schema   *Schema
	b        strings.Builder
	usesLoad bool
}

func (r *renderer) schemaBlock() {
	ops := [][2]string{
		{"query", r.schema.QueryType},
		{"mutation", r.schema.MutationType},
		{"subscription", r.schema.SubscriptionType},
	}
	r.b.WriteString("schema {\n")
	for _, op := range ops {
		if op[1] != "" {
			fmt.Fprintf(&r.b, "  %s: %s\n", op[0], op[1])
		}
	}
	r.b.WriteString("}\n\n")
}

func (r *renderer) description(desc, indent string) {
	if desc == "" {
		return
	}
	if !strings.Contains(desc, "\n") && len(desc) < 80 {
		r.b.WriteString(indent + strconv.Quote(desc) + "\n")
		return
	}
	r.b.WriteString(indent + `"""` + "\n")
	for _, line := range strings.Split(strings.ReplaceAll(desc, `"""`, `\"""`), "\n") {
		r.b.WriteString(indent + line + "\n")
	}
	r.b.WriteString(indent + `"""` + "\n")
}

func (r *renderer) deprecated(is bool, reason string) {
	if !is {
		return
	}
	r.b.WriteString(" @deprecated")
	if reason != "" {
		r.b.WriteString("(reason: " + strconv.Quote(reason) + ")")
	}
}

func (r *renderer) typ(t *Type) {
	r.description(t.Description, "")
	switch t.Kind {
	case TypeKindScalar:
		r.b.WriteString("scalar " + t.Name)
		if t.SpecifiedByURL != nil {
			r.b.WriteString(" @specifiedBy(url: " + strconv.Quote(*t.SpecifiedByURL) + ")")
		}
		r.b.WriteString("\n\n")
	case TypeKindEnum:
		r.b.WriteString("enum " + t.Name + " {\n")
		for _, v := range t.EnumValues {
			r.description(v.Description, "  ")
			r.b.WriteString("  " + v.Name)
			r.deprecated(v.IsDeprecated, v.DeprecationReason)
			r.b.WriteString("\n")
		}
		r.b.WriteString("}\n\n")
	case TypeKindInputObject:
		r.b.WriteString("input " + t.Name)
		if t.OneOf {
			r.b.WriteString(" @oneOf")
		}
		r.b.WriteString(" {\n")
		for _, f := range t.InputFields {
			r.description(f.Description, "  ")
			r.b.WriteString("  " + r.inputValue(f))
			r.deprecated(f.IsDeprecated, f.DeprecationReason)
			r.b.WriteString("\n")
		}
		r.b.WriteString("}\n\n")
	case TypeKindUnion:
		r.b.WriteString("union " + t.Name + " = " + strings.Join(t.PossibleTypes, " | ") + "\n\n")
	case TypeKindObject, TypeKindInterface:
		keyword := "type "
		if t.Kind == TypeKindInterface {
			keyword = "interface "
		}
		r.b.WriteString(keyword + t.Name)
		if len(t.Interfaces) > 0 {
			r.b.WriteString(" implements " + strings.Join(t.Interfaces, " & "))
		}
		r.b.WriteString(" {\n")
		root := r.schema.IsRootType(t.Name)
		for _, f := range t.Fields {
			r.field(f, root)
		}
		r.b.WriteString("}\n\n")
	}
}

func (r *renderer) field(f *Field, root bool) {
	r.description(f.Description, "  ")
	r.b.WriteString("  " + f.Name)
	if len(f.Arguments) > 0 {
		args := make([]string, len(f.Arguments))
		for i, a := range f.Arguments {
			args[i] = r.inputValue(a)
		}
		r.b.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	r.b.WriteString(": " + renderTypeRef(f.Type))
	if f.Async && !root {
		r.usesLoad = true
		r.b.WriteString(" @" + LoadDirective)
	}
	r.deprecated(f.IsDeprecated, f.DeprecationReason)
	r.b.WriteString("\n")
}

func (r *renderer) inputValue(v *InputValue) string {
	out := v.Name + ": " + renderTypeRef(v.Type)
	if v.DefaultValue != nil {
		out += " = " + ValueLiteral(v.DefaultValue)
	}
	return out
}

func (r *renderer) directive(d *Directive) {
	r.description(d.Description, "")
	r.b.WriteString("directive @" + d.Name)
	if len(d.Arguments) > 0 {
		args := make([]string, len(d.Arguments))
		for i, a := range d.Arguments {
			args[i] = r.inputValue(a)
		}
		r.b.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	if d.IsRepeatable {
		r.b.WriteString(" repeatable")
	}
	r.b.WriteString(" on " + strings.Join(d.Locations, " | ") + "\n\n")
}

func renderTypeRef(ref *TypeRef) string {
	if ref == nil {
		return ""
	}
	switch ref.Kind {
	case TypeRefKindNamed:
		return ref.Named
	case TypeRefKindList:
		return "[" + renderTypeRef(ref.OfType) + "]"
	case TypeRefKindNonNull:
		return renderTypeRef(ref.OfType) + "!"
	}
	return ""
}

// ValueLiteral renders a default value as a GraphQL literal. Strings are
// quoted; enum values cannot be told apart from strings here and are quoted
// as well.
func ValueLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = ValueLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + ValueLiteral(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}
