package dataloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/events"
)

// BatchFunc fetches values for distinct keys. It must return one Result per
// key, aligned with keys by position. A non-nil error fails every key of the
// batch with that error.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]Result[V], error)

// Loader coalesces Load calls into batched calls of its BatchFunc and
// memoizes every result for its own lifetime. A Loader is meant to live for
// one request; it is safe for concurrent use.
type Loader[K comparable, V any] struct {
	fetch    BatchFunc[K, V]
	name     string
	maxBatch int

	mu      sync.Mutex
	cache   map[K]Result[V]
	pending []K
	waiters map[K][]*Thunk[V]

	batches atomic.Uint64
	keys    atomic.Uint64
	hits    atomic.Uint64
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	name     string
	maxBatch int
}

// WithName sets the name reported in dispatch events.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithMaxBatch splits a dispatch into consecutive batches of at most n keys.
// Zero or negative means unbounded.
func WithMaxBatch(n int) Option { return func(o *options) { o.maxBatch = n } }

// New creates a Loader over fetch.
func New[K comparable, V any](fetch BatchFunc[K, V], opts ...Option) *Loader[K, V] {
	o := options{name: "loader"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[K, V]{
		fetch:    fetch,
		name:     o.name,
		maxBatch: o.maxBatch,
		cache:    make(map[K]Result[V]),
		waiters:  make(map[K][]*Thunk[V]),
	}
}

// Name returns the loader name.
func (l *Loader[K, V]) Name() string { return l.name }

// Load registers key for the next dispatch and returns a handle to its
// result. A cached key yields an already resolved handle. Load never
// dispatches.
func (l *Loader[K, V]) Load(key K) *Thunk[V] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.cache[key]; ok {
		l.hits.Add(1)
		return resolvedThunk(r)
	}
	t := newThunk[V](l)
	if ws, ok := l.waiters[key]; ok {
		l.waiters[key] = append(ws, t)
		return t
	}
	l.pending = append(l.pending, key)
	l.waiters[key] = []*Thunk[V]{t}
	return t
}

// LoadMany is Load for each key; results keep the order of keys.
func (l *Loader[K, V]) LoadMany(keys []K) *ThunkMany[V] {
	ts := make([]*Thunk[V], len(keys))
	for i, k := range keys {
		ts[i] = l.Load(k)
	}
	return &ThunkMany[V]{thunks: ts}
}

// Prime stores value for key unless the key is already cached or waiting for
// a dispatch. It reports whether the value was stored.
func (l *Loader[K, V]) Prime(key K, value V) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return false
	}
	if _, ok := l.waiters[key]; ok {
		return false
	}
	l.cache[key] = Some(value)
	return true
}

// Clear drops the cached result for key. Waiting handles are unaffected.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	delete(l.cache, key)
	l.mu.Unlock()
}

// ClearAll drops every cached result.
func (l *Loader[K, V]) ClearAll() {
	l.mu.Lock()
	clear(l.cache)
	l.mu.Unlock()
}

// Pending returns the number of keys waiting for dispatch.
func (l *Loader[K, V]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Stats counts activity of a loader.
type Stats struct {
	Batches uint64 // BatchFunc invocations
	Keys    uint64 // keys sent to BatchFunc
	Hits    uint64 // loads answered from cache
}

// Stats reports the loader's counters since it was built.
func (l *Loader[K, V]) Stats() Stats {
	return Stats{Batches: l.batches.Load(), Keys: l.keys.Load(), Hits: l.hits.Load()}
}

// Dispatch fetches every pending key and resolves their handles. It returns
// once all batches of this dispatch are complete. Keys loaded while a
// dispatch is running wait for the next one.
func (l *Loader[K, V]) Dispatch(ctx context.Context) {
	l.mu.Lock()
	keys := l.pending
	l.pending = nil
	l.mu.Unlock()

	for len(keys) > 0 {
		n := len(keys)
		if l.maxBatch > 0 && n > l.maxBatch {
			n = l.maxBatch
		}
		l.run(ctx, keys[:n:n])
		keys = keys[n:]
	}
}

func (l *Loader[K, V]) run(ctx context.Context, keys []K) {
	seq := l.batches.Add(1)
	l.keys.Add(uint64(len(keys)))
	eventbus.Publish(ctx, events.LoaderDispatchStart{Loader: l.name, Batch: seq, Keys: len(keys)})
	start := time.Now()

	results, err := l.call(ctx, keys)
	if err == nil && len(results) != len(keys) {
		err = fmt.Errorf("%s: batch function returned %d results for %d keys", l.name, len(results), len(keys))
	}

	eventbus.Publish(ctx, events.LoaderDispatchFinish{
		Loader:   l.name,
		Batch:    seq,
		Keys:     len(keys),
		Err:      err,
		Duration: time.Since(start),
	})

	type settled struct {
		waiters []*Thunk[V]
		result  Result[V]
	}
	done := make([]settled, 0, len(keys))

	l.mu.Lock()
	for i, k := range keys {
		r := Failure[V](err)
		if err == nil {
			r = results[i]
		}
		l.cache[k] = r
		done = append(done, settled{waiters: l.waiters[k], result: r})
		delete(l.waiters, k)
	}
	l.mu.Unlock()

	for _, s := range done {
		for _, t := range s.waiters {
			t.resolve(s.result)
		}
	}
}

func (l *Loader[K, V]) call(ctx context.Context, keys []K) (results []Result[V], err error) {
	defer func() {
		if p := recover(); p != nil {
			results, err = nil, fmt.Errorf("%s: batch function panicked: %v", l.name, p)
		}
	}()
	return l.fetch(ctx, keys)
}
