package introspection

import (
	"fmt"
	"sort"
	"strings"

	schema "github.com/hanpama/membergraph/internal/schema"
)

// extend returns a copy of original with the introspection types of its SDL
// document and the __schema and __type root fields added.
func extend(original *schema.Schema) (*schema.Schema, error) {
	doc := original.Document()
	if doc == nil {
		return nil, fmt.Errorf("introspection requires a schema built from SDL")
	}
	query := original.GetQueryType()
	if query == nil {
		return nil, fmt.Errorf("schema has no query type")
	}
	extended := original.Clone()

	names := make([]string, 0, 8)
	for name := range doc.Types {
		if strings.HasPrefix(name, "__") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		t, err := schema.BuildType(extended, doc.Types[name])
		if err != nil {
			return nil, fmt.Errorf("introspection type %s: %w", name, err)
		}
		extended.AddType(t)
	}

	root := *query
	root.Fields = append(append([]*schema.Field(nil), query.Fields...),
		schema.NewField("__schema", "Access the current type schema of this server.",
			schema.NonNullType(schema.NamedType("__Schema"))),
		schema.NewField("__type", "Request the type information of a single type.",
			schema.NamedType("__Type")).
			AddArgument(schema.NewInputValue("name", "", schema.NonNullType(schema.NamedType("String")))),
	)
	extended.AddType(&root)
	return extended, nil
}
