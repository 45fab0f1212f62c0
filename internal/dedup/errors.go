package dedup

import "fmt"

// MalformedSequenceError reports a non-numeric message number on a delivery.
// It is non-fatal: the caller logs it and the gate evaluates the delivery as
// sequence number zero.
type MalformedSequenceError struct {
	Raw string
}

func (e *MalformedSequenceError) Error() string {
	return fmt.Sprintf("malformed message number %q", e.Raw)
}
