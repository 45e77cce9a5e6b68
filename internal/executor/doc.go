// Package executor implements a breadth-first GraphQL executor that resolves
// synchronous fields inline and hands asynchronous fields to its Runtime one
// depth at a time.
//
// # Execution model
//
// Before execution the operation is chosen (by name, or the only one when no
// name is given) and variables are coerced against their definitions. Errors
// at this stage stop execution and produce a result without data.
//
// The executor then repeats one cycle per depth:
//
//	A. Sync expansion. Fields with schema.Field.Async == false are resolved
//	   through Runtime.ResolveSync and completed immediately; their object
//	   children are expanded in the same pass without adding depth. Async
//	   fields are queued as AsyncResolveTask values.
//
//	B. Batch. All queued tasks of the depth, minus those below a nulled path,
//	   go to Runtime.BatchResolveAsync in a single call. Results come back in
//	   task order.
//
//	C. Completion. Each result is completed against its field type. Object
//	   results contribute the fields of the next depth.
//
// For a query whose async nesting is d, BatchResolveAsync is called exactly d
// times. Root mutation fields are the exception: each one runs to completion,
// including its nested depths, before the next root field starts.
//
// # Null propagation
//
// Every field carries the path of its nearest nullable ancestor. A null or an
// error on a non-null field writes null at that path and tombstones it, so
// tasks queued below it are dropped before the next batch. A top-level field is
// always its own boundary; data itself is never nulled.
//
// # Coercion
//
// Arguments and variables are coerced against the schema: input objects
// reject unknown fields, fill defaults and require non-null fields; enums must
// name a declared value; Int only accepts integral numbers in the 32-bit range
// and String, Boolean and Float never convert from other kinds. A field whose
// arguments fail to coerce is not resolved.
//
// # Fragments
//
// Inline fragments and fragment spreads apply when their type condition is the
// object type itself, an interface it implements, or a union listing it.
package executor
