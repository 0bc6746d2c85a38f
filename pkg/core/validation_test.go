package core

import (
	"errors"
	"testing"
)

func TestValidatePoolSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"one worker", 1, false},
		{"many workers", 64, false},
		{"zero workers", 0, true},
		{"negative workers", -3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePoolSize(tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePoolSize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQueueSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"default", 0, false},
		{"explicit", 100, false},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueueSize(tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQueueSize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBatchSize(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		wantErr bool
	}{
		{"valid size", 10000, false},
		{"max size", MaxBatchSize, false},
		{"zero size", 0, true},
		{"too large", MaxBatchSize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchSize(tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBatchSize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := ValidatePoolSize(0)
	if !errors.Is(err, &Error{Code: CodeInvalidSize}) {
		t.Errorf("expected %v to match code %s", err, CodeInvalidSize)
	}
	if errors.Is(err, &Error{Code: CodeInvalidBatch}) {
		t.Errorf("expected %v not to match code %s", err, CodeInvalidBatch)
	}
}

func TestFailFast(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("FailFast() should panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, &Error{Code: "TEST"}) {
			t.Errorf("FailFast() panicked with %v, want wrapped TEST error", r)
		}
	}()

	FailFast(&Error{Code: "TEST", Message: "test error"})
}

func TestFailFast_NilIsNoop(t *testing.T) {
	FailFast(nil)
	FailFastIf(false, "unused")
}
