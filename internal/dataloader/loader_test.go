package dataloader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/events"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func (r *recorder) echo() BatchFunc[string, string] {
	return func(_ context.Context, keys []string) ([]Result[string], error) {
		r.mu.Lock()
		r.calls = append(r.calls, append([]string(nil), keys...))
		r.mu.Unlock()
		out := make([]Result[string], len(keys))
		for i, k := range keys {
			out[i] = Some("v:" + k)
		}
		return out, nil
	}
}

func TestLoad_DedupWithinCycle(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo())
	ctx := context.Background()

	a := l.Load("k")
	b := l.Load("k")
	c := l.Load("k")
	require.Equal(t, 1, l.Pending())
	l.Dispatch(ctx)

	require.Equal(t, [][]string{{"k"}}, rec.Calls())
	for _, th := range []*Thunk[string]{a, b, c} {
		r := th.Await(ctx)
		require.NoError(t, r.Err)
		require.True(t, r.Found)
		require.Equal(t, "v:k", r.Value)
	}
}

func TestLoad_CoalescesSiblingsInFirstSeenOrder(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo())
	ctx := context.Background()

	first := l.LoadMany([]string{"a", "b"})
	second := l.LoadMany([]string{"c", "a", "d"})
	l.Dispatch(ctx)

	if diff := cmp.Diff([][]string{{"a", "b", "c", "d"}}, rec.Calls()); diff != "" {
		t.Fatalf("batch calls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, first.Len())
	got := second.Await(ctx)
	require.Equal(t, []string{"v:c", "v:a", "v:d"}, []string{got[0].Value, got[1].Value, got[2].Value})
}

func TestLoad_DoesNotDispatch(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo())
	th := l.Load("a")
	require.False(t, th.Ready())
	require.Empty(t, rec.Calls())
}

func TestLoad_CacheMonotonicity(t *testing.T) {
	boom := errors.New("store unreachable")
	calls := 0
	l := New(func(_ context.Context, keys []string) ([]Result[string], error) {
		calls++
		return nil, boom
	})
	ctx := context.Background()

	l.Load("x")
	l.Dispatch(ctx)
	require.Equal(t, 1, calls)

	r := l.Load("x").Await(ctx)
	require.ErrorIs(t, r.Err, boom)
	require.Equal(t, 1, calls, "failed key must stay cached")
	require.Equal(t, uint64(1), l.Stats().Hits)

	rec := &recorder{}
	ok := New(rec.echo())
	ok.Load("y")
	ok.Dispatch(ctx)
	ok.Load("y").Await(ctx)
	ok.Load("y").Await(ctx)
	require.Len(t, rec.Calls(), 1)
}

func TestPrime(t *testing.T) {
	ctx := context.Background()

	t.Run("prime then load skips fetch", func(t *testing.T) {
		rec := &recorder{}
		l := New(rec.echo())
		require.True(t, l.Prime("k", "primed"))
		r := l.Load("k").Await(ctx)
		require.Equal(t, "primed", r.Value)
		require.Empty(t, rec.Calls())
	})

	t.Run("pending key is not overridden", func(t *testing.T) {
		rec := &recorder{}
		l := New(rec.echo())
		th := l.Load("k")
		require.False(t, l.Prime("k", "late"))
		l.Dispatch(ctx)
		require.Equal(t, "v:k", th.Await(ctx).Value)
	})

	t.Run("fetched key is not overridden", func(t *testing.T) {
		rec := &recorder{}
		l := New(rec.echo())
		l.Load("k")
		l.Dispatch(ctx)
		require.False(t, l.Prime("k", "late"))
		require.Equal(t, "v:k", l.Load("k").Await(ctx).Value)
	})

	t.Run("first prime wins", func(t *testing.T) {
		l := New((&recorder{}).echo())
		require.True(t, l.Prime("k", "one"))
		require.False(t, l.Prime("k", "two"))
		require.Equal(t, "one", l.Load("k").Await(ctx).Value)
	})
}

func TestDispatch_BatchFailureReachesEveryKey(t *testing.T) {
	boom := errors.New("boom")
	l := New(func(_ context.Context, keys []string) ([]Result[int], error) {
		return nil, boom
	})
	ctx := context.Background()
	res := l.LoadMany([]string{"a", "b", "a"})
	l.Dispatch(ctx)

	for _, r := range res.Await(ctx) {
		require.ErrorIs(t, r.Err, boom)
		require.False(t, r.Found)
	}
}

func TestDispatch_MisalignedResultsFailBatch(t *testing.T) {
	l := New(func(_ context.Context, keys []string) ([]Result[int], error) {
		return []Result[int]{Some(1)}, nil
	}, WithName("short"))
	ctx := context.Background()
	a, b := l.Load("a"), l.Load("b")
	l.Dispatch(ctx)

	require.ErrorContains(t, a.Await(ctx).Err, "short: batch function returned 1 results for 2 keys")
	require.Equal(t, a.Await(ctx).Err, b.Await(ctx).Err)
}

func TestDispatch_PanicBecomesFailure(t *testing.T) {
	l := New(func(_ context.Context, keys []string) ([]Result[int], error) {
		panic("kaboom")
	}, WithName("users"))
	ctx := context.Background()
	th := l.Load("a")
	l.Dispatch(ctx)
	require.ErrorContains(t, th.Await(ctx).Err, "users: batch function panicked: kaboom")
}

func TestDispatch_AbsentMarker(t *testing.T) {
	l := New(func(_ context.Context, keys []string) ([]Result[string], error) {
		out := make([]Result[string], len(keys))
		for i, k := range keys {
			if k == "known" {
				out[i] = Some("yes")
			}
		}
		return out, nil
	})
	ctx := context.Background()
	known, missing := l.Load("known"), l.Load("missing")
	l.Dispatch(ctx)

	require.True(t, known.Await(ctx).Found)
	r := missing.Await(ctx)
	require.True(t, r.Absent())
	require.NoError(t, r.Err)
}

func TestDispatch_MaxBatchChunks(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo(), WithMaxBatch(2))
	ctx := context.Background()
	m := l.LoadMany([]string{"a", "b", "c", "d", "e"})
	l.Dispatch(ctx)

	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, rec.Calls())
	for i, r := range m.Await(ctx) {
		require.Equal(t, "v:"+[]string{"a", "b", "c", "d", "e"}[i], r.Value)
	}
	require.Equal(t, Stats{Batches: 3, Keys: 5}, l.Stats())
}

func TestDispatch_EmptyIsNoop(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo())
	l.Dispatch(context.Background())
	require.Empty(t, rec.Calls())
	require.Zero(t, l.Stats().Batches)
}

func TestDispatch_LoadsDuringFetchWaitForNextCycle(t *testing.T) {
	var l *Loader[string, string]
	var calls [][]string
	l = New(func(_ context.Context, keys []string) ([]Result[string], error) {
		calls = append(calls, keys)
		if keys[0] == "a" {
			l.Load("b")
		}
		out := make([]Result[string], len(keys))
		for i, k := range keys {
			out[i] = Some(k)
		}
		return out, nil
	})
	ctx := context.Background()
	l.Load("a")
	l.Dispatch(ctx)
	require.Equal(t, 1, l.Pending())
	l.Dispatch(ctx)
	require.Equal(t, [][]string{{"a"}, {"b"}}, calls)
}

func TestAwait_DispatchesOwnLoader(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo())
	r := l.Load("solo").Await(context.Background())
	require.Equal(t, "v:solo", r.Value)
	require.Len(t, rec.Calls(), 1)
}

func TestAwait_CancelledCallerLeavesCacheIntact(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	calls := 0
	l := New(func(_ context.Context, keys []string) ([]Result[string], error) {
		calls++
		close(entered)
		<-release
		return []Result[string]{Some("late")}, nil
	})

	th := l.Load("k")
	dispatched := make(chan struct{})
	go func() {
		l.Dispatch(context.Background())
		close(dispatched)
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := th.Await(ctx)
	require.ErrorIs(t, r.Err, context.Canceled)

	close(release)
	<-dispatched
	require.Equal(t, "late", th.Await(context.Background()).Value)
	require.Equal(t, "late", l.Load("k").Await(context.Background()).Value)
	require.Equal(t, 1, calls)
}

func TestLoad_InFlightKeyIsNotFetchedTwice(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	rec := &recorder{}
	echo := rec.echo()
	l := New(func(ctx context.Context, keys []string) ([]Result[string], error) {
		if len(rec.Calls()) == 0 {
			close(entered)
			<-release
		}
		return echo(ctx, keys)
	})

	first := l.Load("k")
	go l.Dispatch(context.Background())
	<-entered

	second := l.Load("k")
	require.Zero(t, l.Pending())
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Equal(t, "v:k", first.Await(ctx).Value)
	require.Equal(t, "v:k", second.Await(ctx).Value)
	require.Len(t, rec.Calls(), 1)
}

func TestClear(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo())
	ctx := context.Background()
	l.Load("a").Await(ctx)
	l.Load("b").Await(ctx)

	l.Clear("a")
	l.Load("a").Await(ctx)
	l.Load("b").Await(ctx)
	require.Equal(t, [][]string{{"a"}, {"b"}, {"a"}}, rec.Calls())

	l.ClearAll()
	require.True(t, l.Prime("b", "fresh"))
	require.Equal(t, "fresh", l.Load("b").Await(ctx).Value)
}

func TestLoad_ConcurrentCallersShareOneSlot(t *testing.T) {
	rec := &recorder{}
	l := New(rec.echo())
	ctx := context.Background()

	var wg sync.WaitGroup
	thunks := make([]*Thunk[string], 32)
	for i := range thunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thunks[i] = l.Load("shared")
		}(i)
	}
	wg.Wait()
	l.Dispatch(ctx)

	require.Len(t, rec.Calls(), 1)
	for _, th := range thunks {
		require.Equal(t, "v:shared", th.Await(ctx).Value)
	}
}

func TestDispatch_PublishesEvents(t *testing.T) {
	prev := eventbus.Default()
	t.Cleanup(func() { eventbus.Use(prev) })
	eventbus.Use(eventbus.New())

	var starts []events.LoaderDispatchStart
	var finishes []events.LoaderDispatchFinish
	eventbus.Subscribe(func(_ context.Context, e events.LoaderDispatchStart) { starts = append(starts, e) })
	eventbus.Subscribe(func(_ context.Context, e events.LoaderDispatchFinish) { finishes = append(finishes, e) })

	l := New((&recorder{}).echo(), WithName("post"))
	l.LoadMany([]string{"a", "b"})
	l.Dispatch(context.Background())

	require.Equal(t, []events.LoaderDispatchStart{{Loader: "post", Batch: 1, Keys: 2}}, starts)
	require.Len(t, finishes, 1)
	require.Equal(t, "post", finishes[0].Loader)
	require.NoError(t, finishes[0].Err)
}
