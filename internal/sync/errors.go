package sync

import "fmt"

// FetchError wraps a transport or provider failure during change listing.
// The run aborts with the cursor untouched; the provider's next notification
// is the retry mechanism.
type FetchError struct {
	ResourceID string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch changes for %s: %v", e.ResourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError wraps a store write failure after a successful fetch. Nothing
// is dispatched downstream when the persist did not confirm.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
