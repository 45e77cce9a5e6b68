package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testSDL = `
directive @load on FIELD_DEFINITION

"Root"
type Query {
  user(id: ID!): User
  users(limit: Int = 10): [User!]!
}

type User {
  id: ID!
  name: String @deprecated(reason: "use fullName")
  friends: [User!] @load
}

enum Role { ADMIN USER }

input Filter { role: Role, limit: Int = 5 }
`

const testRendered = `schema {
  query: Query
}

input Filter {
  role: Role
  limit: Int = 5
}

"Root"
type Query {
  user(id: ID!): User
  users(limit: Int = 10): [User!]!
}

enum Role {
  ADMIN
  USER
}

type User {
  id: ID!
  name: String @deprecated(reason: "use fullName")
  friends: [User!] @load
}

directive @load on FIELD_DEFINITION
`

func TestBuildFromSDL(t *testing.T) {
	s, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	require.NotNil(t, s.Document())
	require.Equal(t, "Query", s.QueryType)
	require.Empty(t, s.MutationType)

	query := s.GetQueryType()
	require.Equal(t, "Root", query.Description)
	for _, f := range query.Fields {
		require.True(t, f.Async, "root field %s must be async", f.Name)
	}
	users := query.FieldByName("users")
	require.Equal(t, 10, users.Arguments[0].DefaultValue)
	require.Equal(t, "[User!]!", renderTypeRef(users.Type))

	user := s.Types["User"]
	require.False(t, user.FieldByName("id").Async)
	require.True(t, user.FieldByName("friends").Async)
	name := user.FieldByName("name")
	require.True(t, name.IsDeprecated)
	require.Equal(t, "use fullName", name.DeprecationReason)

	role := s.Types["Role"]
	require.Equal(t, TypeKindEnum, role.Kind)
	require.True(t, role.HasEnumValue("ADMIN"))
	require.False(t, role.HasEnumValue("GUEST"))

	filter := s.Types["Filter"]
	require.Equal(t, 5, filter.InputFieldByName("limit").DefaultValue)
	require.Nil(t, filter.InputFieldByName("missing"))

	_, declared := s.Directives[LoadDirective]
	require.False(t, declared, "@load is stripped from the executable schema")
	require.Contains(t, s.Directives, "include")
	require.Contains(t, s.Directives, "skip")
}

func TestRender(t *testing.T) {
	s, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	if diff := cmp.Diff(testRendered, Render(s)); diff != "" {
		t.Errorf("rendered schema mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderRoundTrips(t *testing.T) {
	s, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	again, err := BuildFromSDL("rendered.graphql", Render(s))
	require.NoError(t, err)
	require.Equal(t, Render(s), Render(again))
}

func TestBuildFromSDLErrors(t *testing.T) {
	_, err := BuildFromSDL("bad.graphql", `type Query { user: Missing }`)
	require.Error(t, err)

	_, err = BuildFromSDL("noquery.graphql", `type User { id: ID }`)
	require.Error(t, err)
}

func TestRenderNil(t *testing.T) {
	require.Empty(t, Render(nil))
}
