package requests

import (
	"errors"
	"fmt"
)

// ErrCommandInFlight is returned when a command for the same (kind, id) is
// still running.
var ErrCommandInFlight = errors.New("a command for this request is already in flight")

// ValidationError rejects input before any backend call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// SourceFetchError is one adapter's failure. The aggregator degrades instead
// of returning it.
type SourceFetchError struct {
	Kind Kind
	Err  error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s requests: %v", e.Kind, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// CommandError is a backend mutation that failed. Nothing is rolled back
// because nothing was applied locally.
type CommandError struct {
	Key    Key
	Action Action
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Key, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
