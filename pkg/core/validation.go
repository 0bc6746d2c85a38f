package core

import (
	"fmt"
)

// MaxBatchSize bounds the numbers handed to a single job.
const MaxBatchSize = 1 << 24

// ValidatePoolSize validates the number of workers of a pool
func ValidatePoolSize(size int) error {
	if size <= 0 {
		return &Error{Code: CodeInvalidSize, Message: "worker pool size must be positive"}
	}
	return nil
}

// ValidateQueueSize validates the capacity of a job queue. Zero selects the default.
func ValidateQueueSize(size int) error {
	if size < 0 {
		return &Error{Code: CodeInvalidQueueSize, Message: "queue size cannot be negative"}
	}
	return nil
}

// ValidateBatchSize validates the width of a conjecture batch
func ValidateBatchSize(size uint64) error {
	if size == 0 {
		return &Error{Code: CodeInvalidBatch, Message: "batch size must be positive"}
	}
	if size > MaxBatchSize {
		return &Error{Code: CodeInvalidBatch, Message: fmt.Sprintf("batch size too large (max %d)", MaxBatchSize)}
	}
	return nil
}

// FailFast panics with an error (fail-fast principle)
func FailFast(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w", err))
	}
}

// FailFastIf panics if condition is true
func FailFastIf(condition bool, message string) {
	if condition {
		panic(fmt.Errorf("fail-fast: %s", message))
	}
}
