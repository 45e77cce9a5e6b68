package events

import "time"

// LoaderDispatchStart is emitted before a loader calls its batch function.
type LoaderDispatchStart struct {
	Loader string
	Batch  uint64
	Keys   int
}

// LoaderDispatchFinish is emitted after a batch completes. Err is the batch
// failure, if any; per-key absences are not failures.
type LoaderDispatchFinish struct {
	Loader   string
	Batch    uint64
	Keys     int
	Err      error
	Duration time.Duration
}
