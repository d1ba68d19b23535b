package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		terminal bool
	}{
		{
			name:     "validation error is terminal",
			err:      ValidationError{Field: "format", Message: "not a jpeg"},
			terminal: true,
		},
		{
			name:     "quota error is terminal",
			err:      QuotaError{UserID: 1, Category: "landscape", Limit: 3},
			terminal: true,
		},
		{
			name:     "db error is terminal",
			err:      DBError{Operation: "insert", Reason: "constraint violated"},
			terminal: true,
		},
		{
			name:     "not found error is terminal",
			err:      NotFoundError{Resource: "user", ID: "42"},
			terminal: true,
		},
		{
			name:     "processing error is retryable",
			err:      ProcessingError{Operation: "decode", Reason: "truncated file"},
			terminal: false,
		},
		{
			name:     "storage error is retryable",
			err:      StorageError{Operation: "upload", Key: "a/full.jpg", Reason: "timeout"},
			terminal: false,
		},
		{
			name:     "plain error is retryable",
			err:      errors.New("something broke"),
			terminal: false,
		},
		{
			name:     "wrapped terminal error stays terminal",
			err:      fmt.Errorf("stage failed: %w", ValidationError{Field: "size", Message: "too small"}),
			terminal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, IsTerminal(tt.err))
		})
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{
			name:   "format validation",
			err:    ValidationError{Field: "format", Message: "not a jpeg"},
			reason: ReasonInvalidFormat,
		},
		{
			name:   "size validation",
			err:    ValidationError{Field: "size", Message: "too small"},
			reason: ReasonInvalidSize,
		},
		{
			name:   "quota exceeded",
			err:    QuotaError{UserID: 1, Category: "portrait", Limit: 3},
			reason: ReasonTooManySubmissions,
		},
		{
			name:   "storage failure",
			err:    StorageError{Operation: "upload", Reason: "timeout"},
			reason: ReasonUploadFailed,
		},
		{
			name:   "processing failure",
			err:    ProcessingError{Operation: "decode", Reason: "truncated"},
			reason: ReasonProcessingFailed,
		},
		{
			name:   "message validation falls back to processing",
			err:    ValidationError{Field: "uuid", Message: "uuid is required"},
			reason: ReasonProcessingFailed,
		},
		{
			name:   "wrapped error unwraps to its reason",
			err:    fmt.Errorf("persist: %w", QuotaError{UserID: 2, Category: "macro", Limit: 3}),
			reason: ReasonTooManySubmissions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, FailureReason(tt.err))
		})
	}
}
