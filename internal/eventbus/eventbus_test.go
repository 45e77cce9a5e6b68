package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ N int }

func TestBus_DispatchesByType(t *testing.T) {
	b := New()
	var pings, pongs []int
	On(b, func(_ context.Context, e ping) { pings = append(pings, e.N) })
	On(b, func(_ context.Context, e pong) { pongs = append(pongs, e.N) })

	Emit(b, context.Background(), ping{N: 1})
	Emit(b, context.Background(), pong{N: 2})
	Emit(b, context.Background(), ping{N: 3})

	require.Equal(t, []int{1, 3}, pings)
	require.Equal(t, []int{2}, pongs)
}

func TestBus_UnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var got []string
	unA := On(b, func(context.Context, ping) { got = append(got, "a") })
	On(b, func(context.Context, ping) { got = append(got, "b") })

	unA()
	unA()
	Emit(b, context.Background(), ping{})

	require.Equal(t, []string{"b"}, got)
}

func TestNilBusIsNoop(t *testing.T) {
	var b *Bus
	un := On(b, func(context.Context, ping) { t.Fatal("unexpected call") })
	un()
	Emit(b, context.Background(), ping{})
}

func TestGlobalBus(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { Use(prev) })

	Use(New())
	var n int
	un := Subscribe(func(_ context.Context, e ping) { n += e.N })
	Publish(context.Background(), ping{N: 5})
	un()
	Publish(context.Background(), ping{N: 5})
	require.Equal(t, 5, n)

	Use(nil)
	Publish(context.Background(), ping{N: 1})
	require.Equal(t, 5, n)
}
