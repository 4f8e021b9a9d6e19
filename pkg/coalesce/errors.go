package coalesce

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned to every waiter when the producer exceeds its budget.
var ErrTimeout = errors.New("coalesced request timed out")

// ProducerError wraps a failure of the underlying producer.
type ProducerError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer for %q failed: %v", e.Key, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProducerError) Unwrap() error {
	return e.Err
}
