package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/membergraph/internal/eventbus"
	events "github.com/hanpama/membergraph/internal/events"
	reqid "github.com/hanpama/membergraph/internal/reqid"
)

func TestSpansNestPerRequest(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	b := eventbus.New()
	off := Subscribe(b, tp.Tracer("test"))
	defer off()

	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/graphql", nil)

	eventbus.Emit(b, ctx, events.HTTPStart{Request: req})
	eventbus.Emit(b, ctx, events.GraphQLStart{OperationName: "Q", OperationType: "query"})
	// Two loaders dispatching in the same round.
	eventbus.Emit(b, ctx, events.LoaderDispatchStart{Loader: "users", Batch: 1, Keys: 2})
	eventbus.Emit(b, ctx, events.LoaderDispatchStart{Loader: "posts", Batch: 1, Keys: 2})
	eventbus.Emit(b, ctx, events.LoaderDispatchFinish{Loader: "posts", Batch: 1, Keys: 2, Err: errors.New("connection reset")})
	eventbus.Emit(b, ctx, events.LoaderDispatchFinish{Loader: "users", Batch: 1, Keys: 2})
	eventbus.Emit(b, ctx, events.GraphQLFinish{OperationName: "Q", OperationType: "query"})
	eventbus.Emit(b, ctx, events.HTTPFinish{Request: req, Status: 200})

	ended := rec.Ended()
	require.Len(t, ended, 4)
	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	httpSpan := byName["http.request"][0]
	gqlSpan := byName["graphql.operation"][0]
	require.Equal(t, httpSpan.SpanContext().SpanID(), gqlSpan.Parent().SpanID())

	loaderSpans := byName["loader.dispatch"]
	require.Len(t, loaderSpans, 2)
	for _, s := range loaderSpans {
		require.Equal(t, gqlSpan.SpanContext().SpanID(), s.Parent().SpanID())
	}
	// posts finished first.
	require.Equal(t, codes.Error, loaderSpans[0].Status().Code)
	require.Equal(t, codes.Unset, loaderSpans[1].Status().Code)
}

func TestDepthRejectionIsSpanEvent(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	b := eventbus.New()
	defer Subscribe(b, tp.Tracer("test"))()

	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Emit(b, ctx, events.HTTPStart{Request: req})
	eventbus.Emit(b, ctx, events.DepthRejected{OperationName: "Deep", MaxDepth: 5})
	eventbus.Emit(b, ctx, events.HTTPFinish{Request: req, Status: 200})

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 1)
	require.Equal(t, "graphql.depth_rejected", ended[0].Events()[0].Name)
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), eventbus.New(), "", "membergraph")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
