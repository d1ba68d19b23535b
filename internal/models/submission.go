package models

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// VariantKind identifies one derived rendition of a source image
type VariantKind string

const (
	VariantFull      VariantKind = "full"
	VariantLarge     VariantKind = "large"
	VariantMedium    VariantKind = "medium"
	VariantSmall     VariantKind = "small"
	VariantThumbnail VariantKind = "thumbnail"
)

// Variant represents one derived file of a job, local until uploaded
type Variant struct {
	Kind      VariantKind `json:"kind"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	LocalPath string      `json:"local_path"`
}

// RemoteKey returns the object storage key for a variant of a submission
func (v Variant) RemoteKey(uuid string) string {
	return fmt.Sprintf("%s/%s.jpg", uuid, v.Kind)
}

// LocalFilename returns the scratch-dir filename for a variant kind
func (k VariantKind) LocalFilename() string {
	return string(k) + ".jpg"
}

// Stage identifies one step of the submission pipeline
type Stage string

const (
	StageValidating       Stage = "validating"
	StagePreparingScratch Stage = "preparing_scratch"
	StageTranscoding      Stage = "transcoding"
	StageUploading        Stage = "uploading"
	StagePersisting       Stage = "persisting"
	StageCleaningUp       Stage = "cleaning_up"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// Terminal reports whether the stage is a terminal state
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// JobMessage is the inbound message delivered by the submission queue.
// The field names are the wire contract with the enqueuing web layer.
type JobMessage struct {
	UUID     string `json:"uuid"`
	Source   string `json:"src"`
	UserID   int64  `json:"userId"`
	Category string `json:"category"`
	Title    string `json:"title,omitempty"`
}

// Validate checks that a job message carries everything the pipeline needs
func (m *JobMessage) Validate() error {
	if m.UUID == "" {
		return ValidationError{Field: "uuid", Message: "uuid is required"}
	}
	if !isValidUUID(m.UUID) {
		return ValidationError{Field: "uuid", Message: "uuid must be a valid UUID"}
	}
	if m.Source == "" {
		return ValidationError{Field: "src", Message: "source path is required"}
	}
	if !filepath.IsAbs(m.Source) {
		return ValidationError{Field: "src", Message: "source path must be absolute"}
	}
	if m.UserID <= 0 {
		return ValidationError{Field: "userId", Message: "user id is required"}
	}
	if m.Category == "" {
		return ValidationError{Field: "category", Message: "category is required"}
	}
	return nil
}

// Job is one unit of queued work owned by a single worker end-to-end
type Job struct {
	// QueueID is the queue-assigned delivery identifier used for ack/requeue
	QueueID uint64

	UUID     string
	Source   string
	UserID   int64
	Category string
	Title    string

	// ScratchDir is the job-exclusive temp dir; empty until scratch setup
	ScratchDir string

	// Variants produced by transcoding, in production order
	Variants []Variant

	Attempt     int
	MaxAttempts int

	Stage     Stage
	StartedAt time.Time
}

// NewJob builds a Job from an inbound message and delivery metadata
func NewJob(msg JobMessage, queueID uint64, attempt, maxAttempts int) *Job {
	return &Job{
		QueueID:     queueID,
		UUID:        msg.UUID,
		Source:      msg.Source,
		UserID:      msg.UserID,
		Category:    msg.Category,
		Title:       msg.Title,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Stage:       StageValidating,
		StartedAt:   time.Now().UTC(),
	}
}

// LastAttempt reports whether a failure on this delivery exhausts the job
func (j *Job) LastAttempt() bool {
	return j.Attempt >= j.MaxAttempts
}

// SubmissionRecord is the durable row written after all variants are uploaded
type SubmissionRecord struct {
	UUID        string    `json:"uuid"`
	UserID      int64     `json:"user_id"`
	Category    string    `json:"category"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is the submitting account looked up before the record is written
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// NotificationStatus is the terminal outcome reported to the web layer
type NotificationStatus string

const (
	NotificationCompleted NotificationStatus = "completed"
	NotificationFailed    NotificationStatus = "failed"
)

// Notification is the outbound event published per terminal job outcome
type Notification struct {
	JobID   uint64             `json:"job_id"`
	UUID    string             `json:"uuid"`
	Status  NotificationStatus `json:"status"`
	Reason  string             `json:"reason,omitempty"`
	Attempt int                `json:"attempt"`
}

func isValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
