package repository

import "fmt"

// BatchError reports the item a batch write stopped at.
// Items before Index were written; items from Index on were not.
type BatchError struct {
	Index int    // Position of the failing item in the input
	ID    string // Its id, when it had a valid one
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d (id %q): %v", e.Index, e.ID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Written returns how many items were written before the failure.
func (e *BatchError) Written() int {
	return e.Index
}
