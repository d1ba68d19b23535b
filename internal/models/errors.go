package models

import (
	"errors"
	"fmt"
)

// Rejection reasons surfaced to the enqueuing layer on terminal failures.
// The codes match what the web layer renders to the user.
const (
	ReasonInvalidFormat      = "invalid_format"
	ReasonInvalidSize        = "invalid_size"
	ReasonTooManySubmissions = "too_many_submissions"
	ReasonUploadFailed       = "upload_failed"
	ReasonProcessingFailed   = "processing_failed"
)

// Custom error types for pipeline outcome classification
type (
	// ValidationError rejects a source image before any work is done.
	// Terminal: redelivery cannot make an invalid upload valid.
	ValidationError struct {
		Field   string `json:"field"` // "format" or "size" for image checks
		Message string `json:"message"`
	}

	// ProcessingError covers decode/encode/filesystem failures while
	// transcoding. Retryable via queue redelivery.
	ProcessingError struct {
		Operation string `json:"operation"`
		Reason    string `json:"reason"`
	}

	// StorageError covers object storage failures. Retryable: uploads are
	// idempotent, so the redelivered job overwrites any partial keys.
	StorageError struct {
		Operation string `json:"operation"`
		Key       string `json:"key,omitempty"`
		Reason    string `json:"reason"`
	}

	// QuotaError rejects a submission over the per-category cap. Terminal.
	QuotaError struct {
		UserID   int64  `json:"user_id"`
		Category string `json:"category"`
		Limit    int    `json:"limit"`
	}

	// DBError covers record-writer failures other than the quota. Terminal
	// business-rule failures per the pipeline contract.
	DBError struct {
		Operation string `json:"operation"`
		Reason    string `json:"reason"`
	}

	// NotFoundError reports a missing resource (typically the submitting user)
	NotFoundError struct {
		Resource string `json:"resource"`
		ID       string `json:"id"`
	}
)

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("processing error during %s: %s", e.Operation, e.Reason)
}

func (e StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s of %s: %s", e.Operation, e.Key, e.Reason)
	}
	return fmt.Sprintf("storage error during %s: %s", e.Operation, e.Reason)
}

func (e QuotaError) Error() string {
	return fmt.Sprintf("user %d already has %d submissions in category %q", e.UserID, e.Limit, e.Category)
}

func (e DBError) Error() string {
	return fmt.Sprintf("database error during %s: %s", e.Operation, e.Reason)
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
}

// IsTerminal reports whether an error must not be retried. Terminal failures
// are acked with a failure notification; everything else goes back on the
// queue for redelivery.
func IsTerminal(err error) bool {
	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return true
	}
	var quotaErr QuotaError
	if errors.As(err, &quotaErr) {
		return true
	}
	var dbErr DBError
	if errors.As(err, &dbErr) {
		return true
	}
	var notFoundErr NotFoundError
	if errors.As(err, &notFoundErr) {
		return true
	}
	return false
}

// FailureReason maps a pipeline error to the rejection code published to the
// web layer.
func FailureReason(err error) string {
	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Field {
		case "format":
			return ReasonInvalidFormat
		case "size":
			return ReasonInvalidSize
		}
		return ReasonProcessingFailed
	}
	var quotaErr QuotaError
	if errors.As(err, &quotaErr) {
		return ReasonTooManySubmissions
	}
	var storageErr StorageError
	if errors.As(err, &storageErr) {
		return ReasonUploadFailed
	}
	return ReasonProcessingFailed
}
