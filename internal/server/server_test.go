package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/events"
	"github.com/hanpama/membergraph/internal/executor"
	"github.com/hanpama/membergraph/internal/reqid"
	"github.com/hanpama/membergraph/internal/resolvers"
	"github.com/hanpama/membergraph/internal/schema"
	"github.com/hanpama/membergraph/internal/store"
	"github.com/hanpama/membergraph/internal/store/memstore"
	"github.com/hanpama/membergraph/internal/store/storetest"
)

func newTestHandler(t *testing.T, rt executor.Runtime, opts ...Option) *Handler {
	t.Helper()
	sdl := `type Query { hello(name: String): String }`
	sch, err := schema.BuildFromSDL("test.graphql", sdl)
	require.NoError(t, err)
	h, err := New(rt, sch, opts...)
	require.NoError(t, err)
	return h
}

// newStoreHandler serves the real schema over a counting memory store
// holding one user with one post.
func newStoreHandler(t *testing.T, opts ...Option) (*Handler, *storetest.Counting) {
	t.Helper()
	ctx := context.Background()
	mem := memstore.New()
	u, err := mem.CreateUser(ctx, store.CreateUserInput{Name: "ann", Balance: 1})
	require.NoError(t, err)
	_, err = mem.CreatePost(ctx, store.CreatePostInput{Title: "t", Content: "c", AuthorID: u.ID})
	require.NoError(t, err)

	st := storetest.NewCounting(mem)
	sch, err := resolvers.LoadSchema()
	require.NoError(t, err)
	rt := resolvers.NewRuntime(st, sch)
	h, err := New(rt, sch, append([]Option{WithRequestScope(rt.WithLoaders)}, opts...)...)
	require.NoError(t, err)
	return h, st
}

func useBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	prev := eventbus.Default()
	t.Cleanup(func() { eventbus.Use(prev) })
	b := eventbus.New()
	eventbus.Use(b)
	return b
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestServesQuery(t *testing.T) {
	h, _ := newStoreHandler(t)

	w, out := post(t, h, `{"query":"{ users { name posts { title } } }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	want := map[string]any{"data": map[string]any{"users": []any{
		map[string]any{"name": "ann", "posts": []any{map[string]any{"title": "t"}}},
	}}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestDepthExceededAnswersErrorsOnly(t *testing.T) {
	b := useBus(t)
	var rejected []events.DepthRejected
	eventbus.On(b, func(_ context.Context, e events.DepthRejected) { rejected = append(rejected, e) })
	h, st := newStoreHandler(t)

	query := `query Deep { users { userSubscribedTo { userSubscribedTo { userSubscribedTo { userSubscribedTo { userSubscribedTo { name } } } } } } }`
	w, out := post(t, h, fmt.Sprintf(`{"query":%q}`, query))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, out, "data")
	errs := out["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	require.Equal(t, "'Deep' exceeds maximum operation depth of 5", first["message"])
	require.Equal(t, []any{"users", "userSubscribedTo", "userSubscribedTo", "userSubscribedTo", "userSubscribedTo", "userSubscribedTo", "name"}, first["path"])
	require.Zero(t, st.Total())
	require.Equal(t, []events.DepthRejected{{OperationName: "Deep", MaxDepth: 5, Violations: 1}}, rejected)
}

func TestDepthAtBoundIsServed(t *testing.T) {
	h, _ := newStoreHandler(t, WithMaxDepth(2))

	_, out := post(t, h, `{"query":"{ users { userSubscribedTo { name } } }"}`)
	require.Contains(t, out, "data")
	require.NotContains(t, out, "errors")

	_, out = post(t, h, `{"query":"{ users { userSubscribedTo { userSubscribedTo { name } } } }"}`)
	require.NotContains(t, out, "data")
}

func TestMalformedQueryAnswersErrorsOnly(t *testing.T) {
	h, st := newStoreHandler(t)

	for _, query := range []string{"{ users { name }", "{ users { nope } }"} {
		_, out := post(t, h, fmt.Sprintf(`{"query":%q}`, query))
		require.NotContains(t, out, "data", query)
		require.NotEmpty(t, out["errors"], query)
	}
	require.Zero(t, st.Total())
}

func TestVariableErrorsAnswerErrorsOnly(t *testing.T) {
	h, _ := newStoreHandler(t)

	_, out := post(t, h, `{"query":"query($id: UUID!) { user(id: $id) { name } }"}`)
	require.NotContains(t, out, "data")
	require.Equal(t, "variable $id of required type UUID! was not provided", out["errors"].([]any)[0].(map[string]any)["message"])
}

func TestRequestScopePerOperation(t *testing.T) {
	type scopeKey struct{}
	scopes := 0
	rt := executor.NewMockRuntime(nil)
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		return fmt.Sprintf("%v", ctx.Value(scopeKey{})), nil
	})
	h := newTestHandler(t, rt, WithRequestScope(func(ctx context.Context) context.Context {
		scopes++
		return context.WithValue(ctx, scopeKey{}, scopes)
	}))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`[{"query":"{ hello }"},{"query":"{ hello }"}]`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	want := []map[string]any{
		{"data": map[string]any{"hello": "1"}},
		{"data": map[string]any{"hello": "2"}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestGetWithVariables(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": func(ctx context.Context, src any, args map[string]any) (any, error) {
			return "hi " + args["name"].(string), nil
		},
	})
	h := newTestHandler(t, rt)

	q := url.Values{}
	q.Set("query", "query($n: String) { hello(name: $n) }")
	q.Set("variables", `{"n":"bob"}`)
	req := httptest.NewRequest("GET", "/?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":{"hello":"hi bob"}}`, w.Body.String())
}

func TestCORSAndPreflight(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt, WithCORS("*"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
}

func TestMaxBodyBytes(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt, WithMaxBodyBytes(10))

	w, out := post(t, h, `{"query":"1234567890"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.NotContains(t, out, "data")
}

func TestRejectsBadRequests(t *testing.T) {
	h := newTestHandler(t, executor.NewMockRuntime(nil))

	w, _ := post(t, h, `{"query":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest("DELETE", "/", nil)
	dw := httptest.NewRecorder()
	h.ServeHTTP(dw, req)
	require.Equal(t, http.StatusMethodNotAllowed, dw.Code)
}

func TestRequestIDAndHTTPEvents(t *testing.T) {
	b := useBus(t)
	var finished []events.HTTPFinish
	eventbus.On(b, func(_ context.Context, e events.HTTPFinish) { finished = append(finished, e) })

	rt := executor.NewMockRuntime(nil)
	var capturedID int64
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		capturedID, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt)

	w, _ := post(t, h, `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotZero(t, capturedID)
	require.Len(t, finished, 1)
	require.Equal(t, http.StatusOK, finished[0].Status)
}

func TestNewRejectsNonPositiveDepth(t *testing.T) {
	sch, err := schema.BuildFromSDL("test.graphql", `type Query { hello: String }`)
	require.NoError(t, err)
	_, err = New(executor.NewMockRuntime(nil), sch, WithMaxDepth(0))
	require.EqualError(t, err, "max depth must be at least 1, got 0")
}
