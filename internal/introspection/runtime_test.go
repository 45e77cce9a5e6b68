package introspection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/membergraph/internal/executor"
	language "github.com/hanpama/membergraph/internal/language"
	schema "github.com/hanpama/membergraph/internal/schema"
)

const testSDL = `
directive @load on FIELD_DEFINITION

type Query {
  hello: String
  user(id: ID!): User
}

type Mutation {
  rename(name: String = "anon"): User
}

"A person"
type User {
  id: ID!
  name: String @deprecated(reason: "use fullName")
  friends: [User!] @load
  role: Role
}

enum Role { ADMIN USER @deprecated }
`

func execute(t *testing.T, base executor.Runtime, query string) *executor.ExecutionResult {
	t.Helper()
	sch, err := schema.BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	w, err := Wrap(base, sch)
	require.NoError(t, err)
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(w.Runtime, w.Schema).ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestSchemaRoots(t *testing.T) {
	res := execute(t, executor.NewMockRuntime(nil), `{
		__schema {
			queryType { name kind }
			mutationType { name }
			subscriptionType { name }
			directives { name }
		}
	}`)
	require.Empty(t, res.Errors)
	want := map[string]any{
		"__schema": map[string]any{
			"queryType":        map[string]any{"name": "Query", "kind": "OBJECT"},
			"mutationType":     map[string]any{"name": "Mutation"},
			"subscriptionType": nil,
			"directives":       []any{map[string]any{"name": "include"}, map[string]any{"name": "skip"}},
		},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaTypesIncludeIntrospectionTypes(t *testing.T) {
	res := execute(t, executor.NewMockRuntime(nil), `{ __schema { types { name } } }`)
	require.Empty(t, res.Errors)
	var names []string
	for _, v := range res.Data.(map[string]any)["__schema"].(map[string]any)["types"].([]any) {
		names = append(names, v.(map[string]any)["name"].(string))
	}
	for _, want := range []string{"Query", "Mutation", "User", "Role", "String", "__Schema", "__Type", "__TypeKind"} {
		require.Contains(t, names, want)
	}
	require.IsIncreasing(t, names)
}

func TestTypeWrappersAndFields(t *testing.T) {
	res := execute(t, executor.NewMockRuntime(nil), `{
		__type(name: "User") {
			kind name description
			fields { name isDeprecated type { kind name ofType { kind name ofType { kind name } } } }
		}
	}`)
	require.Empty(t, res.Errors)
	typ := res.Data.(map[string]any)["__type"].(map[string]any)
	require.Equal(t, "OBJECT", typ["kind"])
	require.Equal(t, "A person", typ["description"])

	fields := typ["fields"].([]any)
	require.Len(t, fields, 3, "deprecated fields are hidden by default")
	want := map[string]any{
		"name":         "friends",
		"isDeprecated": false,
		"type": map[string]any{
			"kind": "LIST", "name": nil,
			"ofType": map[string]any{
				"kind": "NON_NULL", "name": nil,
				"ofType": map[string]any{"kind": "OBJECT", "name": "User"},
			},
		},
	}
	if diff := cmp.Diff(want, fields[1]); diff != "" {
		t.Fatalf("friends mismatch (-want +got):\n%s", diff)
	}
}

func TestDeprecatedAndDefaults(t *testing.T) {
	res := execute(t, executor.NewMockRuntime(nil), `{
		user: __type(name: "User") { fields(includeDeprecated: true) { name deprecationReason } }
		role: __type(name: "Role") { enumValues { name } all: enumValues(includeDeprecated: true) { name isDeprecated } }
		mutation: __type(name: "Mutation") { fields { args { name defaultValue type { name } } } }
		missing: __type(name: "Nope") { name }
	}`)
	require.Empty(t, res.Errors)
	data := res.Data.(map[string]any)

	userFields := data["user"].(map[string]any)["fields"].([]any)
	require.Len(t, userFields, 4)
	require.Equal(t, map[string]any{"name": "name", "deprecationReason": "use fullName"}, userFields[1])
	require.Equal(t, map[string]any{"name": "id", "deprecationReason": nil}, userFields[0])

	role := data["role"].(map[string]any)
	require.Equal(t, []any{map[string]any{"name": "ADMIN"}}, role["enumValues"])
	require.Len(t, role["all"], 2)

	args := data["mutation"].(map[string]any)["fields"].([]any)[0].(map[string]any)["args"]
	require.Equal(t, []any{map[string]any{"name": "name", "defaultValue": `"anon"`, "type": map[string]any{"name": "String"}}}, args)

	require.Nil(t, data["missing"])
}

func TestDelegatesOtherFields(t *testing.T) {
	base := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	res := execute(t, base, `{ hello __type(name: "Role") { name } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"hello": "world", "__type": map[string]any{"name": "Role"}}, res.Data)
	require.Equal(t, 1, base.BatchCount())
}

func TestTypenameField(t *testing.T) {
	res := execute(t, executor.NewMockRuntime(nil), `{ __typename }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"__typename": "Query"}, res.Data)
}

func TestWrapRequiresDocument(t *testing.T) {
	sch := schema.NewSchema("").SetQueryType("Query")
	_, err := Wrap(executor.NewMockRuntime(nil), sch)
	require.EqualError(t, err, "introspection requires a schema built from SDL")
}
