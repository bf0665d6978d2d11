package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobEnvelope(t *testing.T) {
	payload := InviteEmailPayload{
		SubUserID:      uuid.New(),
		ClientID:       uuid.New(),
		RecipientEmail: "ops@acme.io",
		InviteURL:      "https://portal.example.com/invite/abc",
	}
	job, err := NewJob(QueueEmails, JobTypeInviteEmail, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, QueueEmails, job.Queue)
	assert.Equal(t, JobTypeInviteEmail, job.Type)
	assert.Zero(t, job.Attempt)

	var decoded InviteEmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}
