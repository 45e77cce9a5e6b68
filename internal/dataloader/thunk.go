package dataloader

import "context"

type dispatcher interface {
	Dispatch(ctx context.Context)
}

// Thunk is a handle to the eventual result of one Load call.
type Thunk[V any] struct {
	owner  dispatcher
	done   chan struct{}
	result Result[V]
}

func newThunk[V any](owner dispatcher) *Thunk[V] {
	return &Thunk[V]{owner: owner, done: make(chan struct{})}
}

func resolvedThunk[V any](r Result[V]) *Thunk[V] {
	t := &Thunk[V]{done: make(chan struct{}), result: r}
	close(t.done)
	return t
}

func (t *Thunk[V]) resolve(r Result[V]) {
	t.result = r
	close(t.done)
}

// Ready reports whether the result is available without waiting.
func (t *Thunk[V]) Ready() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Await returns the result. If the key has not been dispatched yet, Await
// dispatches the owning loader first. When ctx ends before the batch
// completes, the caller gets ctx.Err(); the batch itself keeps running and
// its result still lands in the loader cache.
func (t *Thunk[V]) Await(ctx context.Context) Result[V] {
	if t.Ready() {
		return t.result
	}
	t.owner.Dispatch(ctx)
	select {
	case <-t.done:
		return t.result
	case <-ctx.Done():
		return Failure[V](ctx.Err())
	}
}

// ThunkMany is a handle to the results of a LoadMany call.
type ThunkMany[V any] struct {
	thunks []*Thunk[V]
}

// Await returns one Result per requested key, in request order. One failed
// key never affects the other positions.
func (m *ThunkMany[V]) Await(ctx context.Context) []Result[V] {
	out := make([]Result[V], len(m.thunks))
	for i, t := range m.thunks {
		out[i] = t.Await(ctx)
	}
	return out
}

// Len returns the number of requested keys.
func (m *ThunkMany[V]) Len() int { return len(m.thunks) }
