package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_StartAppendStop(t *testing.T) {
	r := NewRecorder(0)
	r.now = func() time.Time { return recordingStart }

	started := r.Start("conn-1", "room-1", "alice", "en-US")
	assert.Equal(t, recordingStart, started)
	assert.True(t, r.Active("conn-1"))

	require.NoError(t, r.Append("conn-1", []byte{1, 2}))
	require.NoError(t, r.Append("conn-1", []byte{3}))

	rec, ok := r.Stop("conn-1")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, rec.Audio)
	assert.False(t, r.Active("conn-1"))

	req := rec.Request()
	assert.Equal(t, "room-1", req.RoomID)
	assert.Equal(t, "alice", req.UserID)
	assert.Equal(t, "en-US", req.LanguageCode)
	assert.Equal(t, recordingStart, req.StartedAt)
}

func TestRecorder_AppendWithoutRecording(t *testing.T) {
	r := NewRecorder(0)

	assert.ErrorIs(t, r.Append("conn-1", []byte{1}), ErrNotRecording)
	_, ok := r.Stop("conn-1")
	assert.False(t, ok)
}

func TestRecorder_SizeLimitDiscards(t *testing.T) {
	r := NewRecorder(4)
	r.Start("conn-1", "room-1", "alice", "")

	require.NoError(t, r.Append("conn-1", []byte{1, 2, 3}))
	assert.ErrorIs(t, r.Append("conn-1", []byte{4, 5}), ErrRecordingTooLarge)
	assert.False(t, r.Active("conn-1"))
}

func TestRecorder_RestartDropsBuffer(t *testing.T) {
	r := NewRecorder(0)
	r.Start("conn-1", "room-1", "alice", "")
	require.NoError(t, r.Append("conn-1", []byte{1}))

	r.Start("conn-1", "room-2", "alice", "")
	rec, ok := r.Stop("conn-1")
	require.True(t, ok)
	assert.Empty(t, rec.Audio)
	assert.Equal(t, "room-2", rec.RoomID)
}

func TestRecorder_Discard(t *testing.T) {
	r := NewRecorder(0)
	r.Start("conn-1", "room-1", "alice", "")
	r.Discard("conn-1")
	assert.False(t, r.Active("conn-1"))
}
