package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_DistinguishesAbsentFromNull(t *testing.T) {
	var payload struct {
		DueDate  Optional[time.Time] `json:"due_date"`
		Title    Optional[string]    `json:"title"`
		Reminder Optional[float64]   `json:"reminder_minutes_before"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"due_date":null,"title":"Buy milk"}`), &payload))

	assert.True(t, payload.DueDate.Set)
	assert.False(t, payload.DueDate.Valid)
	assert.Nil(t, payload.DueDate.Ptr())

	assert.True(t, payload.Title.Set)
	assert.True(t, payload.Title.Valid)
	assert.Equal(t, "Buy milk", payload.Title.Value)

	assert.False(t, payload.Reminder.Set)
}

func TestAttachments_ValueAndScan(t *testing.T) {
	ct := "image/png"
	in := Attachments{{StorageID: "abc", Name: "a.png", ContentType: &ct, Size: 42}}

	v, err := in.Value()
	require.NoError(t, err)

	var out Attachments
	require.NoError(t, out.Scan(v))
	require.Len(t, out, 1)
	assert.Equal(t, "abc", out[0].StorageID)
	assert.Equal(t, int64(42), out[0].Size)

	var empty Attachments
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)

	nilValue, err := Attachments(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", nilValue)
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now.UnixMilli()}
	assert.True(t, s.Expired(now))

	s.ExpiresAt = now.Add(time.Millisecond).UnixMilli()
	assert.False(t, s.Expired(now))
}
