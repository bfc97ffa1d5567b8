package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Status
	}{
		{"queued", StatusQueued},
		{"Queued", StatusQueued},
		{"PROCESSING", StatusProcessing},
		{"submitted", StatusSubmitted},
		{"completed", StatusCompleted},
		{"failed", StatusFailed},
		{"cleaned", StatusCleaned},
		{"prepared", StatusPrepared},
		{"unknown", StatusUnknown},
		// Anything unrecognized folds to unknown.
		{"garbage", StatusUnknown},
		{"", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFromString(tt.input))
		})
	}
}

func TestStatusDisplayAndJSON(t *testing.T) {
	// Stored lower-case, displayed capitalized.
	assert.Equal(t, "queued", StatusQueued.String())
	assert.Equal(t, "Queued", StatusQueued.Display())

	data, err := json.Marshal(StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, `"Completed"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"Failed"`), &s))
	assert.Equal(t, StatusFailed, s)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusUnknown.Terminal())
	assert.True(t, StatusCleaned.Terminal())

	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.False(t, StatusPrepared.Terminal())
}

func TestJobJSONCarriesDisplayStatus(t *testing.T) {
	job := NewJob("/data")
	job.Status = StatusQueued

	data, err := json.Marshal(job)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"Queued"`)
}
