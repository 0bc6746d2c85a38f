package core

import "errors"

// Error is a coded error used for precondition and configuration failures.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	CodeInvalidSize      = "INVALID_SIZE"
	CodeInvalidQueueSize = "INVALID_QUEUE_SIZE"
	CodeInvalidJob       = "INVALID_JOB"
	CodeInvalidBatch     = "INVALID_BATCH"
	CodeInvalidConfig    = "INVALID_CONFIG"
)
