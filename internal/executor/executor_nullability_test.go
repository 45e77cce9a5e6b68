package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/membergraph/internal/schema"
)

func TestNullability_NearestNullableAncestor_Result(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("user", "", schema.NamedType("User")).SetAsync(true)),
		newObjectType("User",
			schema.NewField("name", "", schema.NonNullType(schema.NamedType("String"))),
			schema.NewField("friend", "", schema.NamedType("User")).SetAsync(true),
			schema.NewField("id", "", schema.NonNullType(schema.NamedType("String"))).SetAsync(true),
		),
		newScalarType("String"),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.user":  NewMockValueResolver(map[string]any{"n": 1}),
		"User.name":   NewMockValueResolver("A"),
		"User.friend": NewMockValueResolver(map[string]any{"n": 2}),
		"User.id":     NewMockErrorResolver(fmt.Errorf("boom")),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "{ user { friend { id } name } }")

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{
		Data:   map[string]any{"user": map[string]any{"friend": nil, "name": "A"}},
		Errors: []GraphQLError{{Message: "boom", Path: Path{"user", "friend", "id"}}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestNullability_SyncFailureDropsQueuedSiblings_Calls(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("obj", "", schema.NamedType("Obj"))),
		newObjectType("Obj",
			schema.NewField("b", "", schema.NonNullType(schema.NamedType("String"))).SetAsync(true),
			schema.NewField("a", "", schema.NonNullType(schema.NamedType("String"))),
		),
		newScalarType("String"),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.obj": NewMockValueResolver(map[string]any{}),
		"Obj.a":     NewMockErrorResolver(fmt.Errorf("boom")),
		"Obj.b":     NewMockValueResolver("B"),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "{ obj { b a } }")

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	gotCalls := rt.GetCalls()

	wantRes := &ExecutionResult{
		Data:   map[string]any{"obj": nil},
		Errors: []GraphQLError{{Message: "boom", Path: Path{"obj", "a"}}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []Call{
		{Kind: "sync", ObjectType: "Query", Field: "obj", Source: nil, Args: map[string]any{}, BatchID: 0},
		{Kind: "sync", ObjectType: "Obj", Field: "a", Source: map[string]any{}, Args: map[string]any{}, BatchID: 0},
	}
	if diff := cmp.Diff(wantCalls, gotCalls); diff != "" {
		t.Fatalf("Runtime calls mismatch (-want +got):\n%s", diff)
	}
}

func TestNullability_NonNullItemNullsList_Result(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query",
			schema.NewField("objs", "", schema.ListType(schema.NonNullType(schema.NamedType("Obj")))),
			schema.NewField("other", "", schema.NamedType("String")),
		),
		newObjectType("Obj", schema.NewField("v", "", schema.NonNullType(schema.NamedType("String"))).SetAsync(true)),
		newScalarType("String"),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.objs":  NewMockValueResolver([]any{map[string]any{"i": 0}, map[string]any{"i": 1}}),
		"Query.other": NewMockValueResolver("O"),
		"Obj.v": func(ctx context.Context, src any, args map[string]any) (any, error) {
			if src.(map[string]any)["i"] == 1 {
				return nil, fmt.Errorf("boom")
			}
			return "X", nil
		},
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "{ objs { v } other }")

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{
		Data:   map[string]any{"objs": nil, "other": "O"},
		Errors: []GraphQLError{{Message: "boom", Path: Path{"objs", 1, "v"}}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestNullability_PrunedSubtreeSkipsNextDepth_Calls(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("items", "", schema.ListType(schema.NamedType("Item"))).SetAsync(true)),
		newObjectType("Item",
			schema.NewField("must", "", schema.NonNullType(schema.NamedType("String"))).SetAsync(true),
			schema.NewField("child", "", schema.NamedType("Item")).SetAsync(true),
		),
		newScalarType("String"),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.items": NewMockValueResolver([]any{map[string]any{"i": 0}}),
		"Item.must":   NewMockValueResolver(nil),
		"Item.child":  NewMockValueResolver(map[string]any{"i": 1}),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "{ items { must child { must } } }")

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{
		Data: map[string]any{"items": []any{nil}},
		Errors: []GraphQLError{
			{Message: "Cannot return null for non-nullable field items.[0].must", Path: Path{"items", 0, "must"}},
		},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, rt.BatchCount(), "no work may run below a nulled item")
}

func TestMutation_AsyncRootFields_OneBatchEach_Calls(t *testing.T) {
	sch := schema.NewSchema("")
	sch.SetQueryType("Query")
	sch.SetMutationType("Mutation")
	sch.AddType(newObjectType("Query"))
	sch.AddType(newObjectType("Mutation",
		schema.NewField("m1", "", schema.NamedType("String")).SetAsync(true),
		schema.NewField("m2", "", schema.NamedType("String")).SetAsync(true),
	))
	sch.AddType(newScalarType("String"))
	rt := NewMockRuntime(map[string]MockResolver{
		"Mutation.m1": NewMockValueResolver("1"),
		"Mutation.m2": NewMockValueResolver("2"),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "mutation { first: m1 m2 again: m1 }")

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	gotCalls := rt.GetCalls()

	wantRes := &ExecutionResult{Data: map[string]any{"first": "1", "m2": "2", "again": "1"}, Errors: []GraphQLError{}}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []Call{
		{Kind: "async", ObjectType: "Mutation", Field: "m1", Source: nil, Args: map[string]any{}, BatchID: 1},
		{Kind: "async", ObjectType: "Mutation", Field: "m2", Source: nil, Args: map[string]any{}, BatchID: 2},
		{Kind: "async", ObjectType: "Mutation", Field: "m1", Source: nil, Args: map[string]any{}, BatchID: 3},
	}
	if diff := cmp.Diff(wantCalls, gotCalls); diff != "" {
		t.Fatalf("Runtime calls mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_FragmentOnInterface_Result(t *testing.T) {
	node := schema.NewType("Node", schema.TypeKindInterface, "").AddPossibleType("Obj")
	obj := newObjectType("Obj", schema.NewField("a", "", schema.NamedType("String"))).AddInterface("Node")
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("node", "", schema.NamedType("Node"))),
		node, obj, newScalarType("String"),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.node": NewMockValueResolver(map[string]any{"__typename": "Obj"}),
		"Obj.a":      NewMockValueResolver("A"),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "{ node { ... on Node { a } ...F } } fragment F on Obj { __typename }")

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{
		Data:   map[string]any{"node": map[string]any{"a": "A", "__typename": "Obj"}},
		Errors: []GraphQLError{},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestArguments_InvalidArgumentSkipsResolver_Result(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("echo", "", schema.NamedType("Int")).
			AddArgument(schema.NewInputValue("v", "", schema.NonNullType(schema.NamedType("Int"))))),
		newScalarType("Int"),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.echo": func(ctx context.Context, src any, args map[string]any) (any, error) { return args["v"], nil },
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, `{ echo(v: "x") }`)

	gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	wantRes := &ExecutionResult{
		Data:   map[string]any{"echo": nil},
		Errors: []GraphQLError{{Message: "argument 'v' cannot be coerced: cannot coerce x (string) to Int", Path: Path{"echo"}}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, rt.GetCalls())
}

func TestArguments_InputObjectWithVariables_Result(t *testing.T) {
	tier := schema.NewType("Tier", schema.TypeKindEnum, "").
		AddEnumValue(schema.NewEnumValue("BASIC", "")).
		AddEnumValue(schema.NewEnumValue("BUSINESS", ""))
	input := schema.NewType("ProfileInput", schema.TypeKindInputObject, "").
		AddInputField(schema.NewInputValue("year", "", schema.NonNullType(schema.NamedType("Int")))).
		AddInputField(schema.NewInputValue("tier", "", schema.NamedType("Tier")).SetDefault("BASIC"))
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("make", "", schema.NamedType("String")).
			AddArgument(schema.NewInputValue("dto", "", schema.NonNullType(schema.NamedType("ProfileInput"))))),
		tier, input, newScalarType("String"), newScalarType("Int"),
	)
	var got map[string]any
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.make": func(ctx context.Context, src any, args map[string]any) (any, error) {
			got = args["dto"].(map[string]any)
			return "ok", nil
		},
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, `query($y: Int!) { make(dto: { year: $y }) }`)

	res := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"y": float64(1990)}, nil)

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"year": 1990, "tier": "BASIC"}, got)
}

func TestCoerceValue_Strictness(t *testing.T) {
	tier := schema.NewType("Tier", schema.TypeKindEnum, "").AddEnumValue(schema.NewEnumValue("BASIC", ""))
	input := schema.NewType("In", schema.TypeKindInputObject, "").
		AddInputField(schema.NewInputValue("a", "", schema.NamedType("String")))
	sch := schema.NewSchema("").AddType(tier).AddType(input)

	tests := []struct {
		name    string
		value   any
		typ     *schema.TypeRef
		want    any
		wantErr string
	}{
		{"integral float to Int", float64(3), schema.NamedType("Int"), 3, ""},
		{"fractional float to Int", 3.5, schema.NamedType("Int"), nil, "cannot coerce"},
		{"Int out of range", 1 << 40, schema.NamedType("Int"), nil, "out of 32-bit range"},
		{"Int to Float", 2, schema.NamedType("Float"), float64(2), ""},
		{"number to String", 2, schema.NamedType("String"), nil, "cannot coerce"},
		{"Int to ID", 7, schema.NamedType("ID"), "7", ""},
		{"known enum", "BASIC", schema.NamedType("Tier"), "BASIC", ""},
		{"unknown enum", "GOLD", schema.NamedType("Tier"), nil, "to enum Tier"},
		{"unknown input field", map[string]any{"b": 1}, schema.NamedType("In"), nil, "unknown field 'b'"},
		{"list wraps single", "x", schema.ListType(schema.NamedType("String")), []any{"x"}, ""},
		{"null for non-null", nil, schema.NonNullType(schema.NamedType("String")), nil, "cannot provide null"},
		{"custom scalar passthrough", "abc", schema.NamedType("UUID"), "abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(sch, tt.value, tt.typ)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
