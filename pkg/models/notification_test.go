package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationMarshalFlattensData(t *testing.T) {
	n := Notification{
		Type:   NotifyTypeReminder,
		UserID: 12345,
		Data:   map[string]any{"reminder_id": "r-1", "text": "water plants"},
	}

	raw, err := json.Marshal(n)
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(raw, &obj))
	assert.Equal(t, "reminder", obj["type"])
	assert.Equal(t, float64(12345), obj["user_id"])
	assert.Equal(t, "r-1", obj["reminder_id"])
	assert.Equal(t, "water plants", obj["text"])
}

func TestNotificationUnmarshalSplitsEnvelope(t *testing.T) {
	raw := []byte(`{"type":"job_failed","user_id":7,"job_id":"j-1","error":"boom"}`)

	var n Notification
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, NotifyTypeJobFailed, n.Type)
	assert.Equal(t, int64(7), n.UserID)
	assert.Equal(t, "j-1", n.Data["job_id"])
	assert.Equal(t, "boom", n.Data["error"])
	assert.NotContains(t, n.Data, "type")
	assert.NotContains(t, n.Data, "user_id")
}

func TestNotificationRoundTrip(t *testing.T) {
	n := Notification{
		Type:   NotifyTypeImageTagResult,
		UserID: 42,
		Data:   map[string]any{"memory_id": "m-1", "tags": []any{"cat", "sofa"}},
	}
	raw, err := json.Marshal(n)
	require.NoError(t, err)

	var got Notification
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, n.Type, got.Type)
	assert.Equal(t, n.UserID, got.UserID)
	assert.Equal(t, "m-1", got.Data["memory_id"])
}
