package persist

import "fmt"

// PersistenceError wraps a failed durable read, write or delete.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %q: %s", e.Op, e.Key, e.Err.Error())
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
