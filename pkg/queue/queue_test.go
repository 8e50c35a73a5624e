package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	payload := RecordingFinalizePayload{SessionID: uuid.New(), StreamKey: "live_abc"}
	job, err := NewJob(JobTypeRecordingFinalize, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeRecordingFinalize, job.Type)
	assert.Zero(t, job.Attempt)
	assert.False(t, job.CreatedAt.IsZero())

	var got RecordingFinalizePayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload, got)
}

func TestNewJobRejectsUnencodablePayload(t *testing.T) {
	_, err := NewJob(JobTypeRecordingFinalize, make(chan int))
	require.Error(t, err)
}
