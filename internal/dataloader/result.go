package dataloader

// Result is the terminal outcome of loading one key.
//
// The zero Result is the absent-marker: no error and no value. A batch
// function reports "no entity for this key" by returning None rather than an
// error, so that one missing row never fails its batch.
type Result[V any] struct {
	Value V
	Err   error
	Found bool
}

// Some returns a Result holding v.
func Some[V any](v V) Result[V] { return Result[V]{Value: v, Found: true} }

// None returns the absent-marker.
func None[V any]() Result[V] { return Result[V]{} }

// Failure returns a Result carrying err.
func Failure[V any](err error) Result[V] { return Result[V]{Err: err} }

// Absent reports whether the key resolved to no entity.
func (r Result[V]) Absent() bool { return r.Err == nil && !r.Found }

// Get unpacks the result.
func (r Result[V]) Get() (V, bool, error) { return r.Value, r.Found, r.Err }
