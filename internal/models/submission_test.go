package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMessage() JobMessage {
	return JobMessage{
		UUID:     "3f1c07d7-4f7e-4a8e-9a3d-1c2b3a4d5e6f",
		Source:   "/var/uploads/source.jpg",
		UserID:   42,
		Category: "landscape",
		Title:    "Morning fog",
	}
}

func TestJobMessage_Validate(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		msg := validMessage()
		assert.NoError(t, msg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*JobMessage)
		field  string
	}{
		{"missing uuid", func(m *JobMessage) { m.UUID = "" }, "uuid"},
		{"malformed uuid", func(m *JobMessage) { m.UUID = "not-a-uuid" }, "uuid"},
		{"missing source", func(m *JobMessage) { m.Source = "" }, "src"},
		{"relative source", func(m *JobMessage) { m.Source = "uploads/source.jpg" }, "src"},
		{"missing user", func(m *JobMessage) { m.UserID = 0 }, "userId"},
		{"negative user", func(m *JobMessage) { m.UserID = -1 }, "userId"},
		{"missing category", func(m *JobMessage) { m.Category = "" }, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validMessage()
			tt.mutate(&msg)

			err := msg.Validate()
			require.Error(t, err)

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("title is optional", func(t *testing.T) {
		msg := validMessage()
		msg.Title = ""
		assert.NoError(t, msg.Validate())
	})
}

func TestVariant_RemoteKey(t *testing.T) {
	uuid := "3f1c07d7-4f7e-4a8e-9a3d-1c2b3a4d5e6f"

	tests := []struct {
		kind VariantKind
		key  string
	}{
		{VariantFull, uuid + "/full.jpg"},
		{VariantLarge, uuid + "/large.jpg"},
		{VariantMedium, uuid + "/medium.jpg"},
		{VariantSmall, uuid + "/small.jpg"},
		{VariantThumbnail, uuid + "/thumbnail.jpg"},
	}

	for _, tt := range tests {
		v := Variant{Kind: tt.kind}
		assert.Equal(t, tt.key, v.RemoteKey(uuid))
	}
}

func TestVariantKind_LocalFilename(t *testing.T) {
	assert.Equal(t, "full.jpg", VariantFull.LocalFilename())
	assert.Equal(t, "thumbnail.jpg", VariantThumbnail.LocalFilename())
}

func TestNewJob(t *testing.T) {
	msg := validMessage()
	job := NewJob(msg, 7, 2, 3)

	assert.Equal(t, uint64(7), job.QueueID)
	assert.Equal(t, msg.UUID, job.UUID)
	assert.Equal(t, msg.Source, job.Source)
	assert.Equal(t, msg.UserID, job.UserID)
	assert.Equal(t, msg.Category, job.Category)
	assert.Equal(t, msg.Title, job.Title)
	assert.Equal(t, 2, job.Attempt)
	assert.Equal(t, StageValidating, job.Stage)
	assert.False(t, job.StartedAt.IsZero())
}

func TestJob_LastAttempt(t *testing.T) {
	msg := validMessage()

	assert.False(t, NewJob(msg, 1, 1, 3).LastAttempt())
	assert.False(t, NewJob(msg, 1, 2, 3).LastAttempt())
	assert.True(t, NewJob(msg, 1, 3, 3).LastAttempt())
	assert.True(t, NewJob(msg, 1, 4, 3).LastAttempt())
}

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageValidating.Terminal())
	assert.False(t, StageCleaningUp.Terminal())
}
