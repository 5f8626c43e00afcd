package transcript

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNotRecording      = errors.New("no recording in progress")
	ErrRecordingTooLarge = errors.New("recording exceeds size limit")
)

// Recording is audio buffered for batch recognition.
type Recording struct {
	ConnectionID string
	RoomID       string
	UserID       string
	LanguageCode string
	StartedAt    time.Time
	Audio        []byte
}

// Recorder buffers file recordings per connection. A connection has at
// most one recording; starting again discards the previous buffer.
type Recorder struct {
	maxBytes int64
	now      func() time.Time

	mu         sync.Mutex
	recordings map[string]*Recording
}

// NewRecorder creates a Recorder. maxBytes <= 0 disables the limit.
func NewRecorder(maxBytes int64) *Recorder {
	return &Recorder{
		maxBytes:   maxBytes,
		now:        time.Now,
		recordings: make(map[string]*Recording),
	}
}

// Start begins a recording bound to roomID and returns its start time.
func (r *Recorder) Start(connID, roomID, userID, languageCode string) time.Time {
	started := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordings[connID] = &Recording{
		ConnectionID: connID,
		RoomID:       roomID,
		UserID:       userID,
		LanguageCode: languageCode,
		StartedAt:    started,
	}
	return started
}

// Append adds chunk to the connection's recording. Over the size limit the
// recording is discarded and ErrRecordingTooLarge returned.
func (r *Recorder) Append(connID string, chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recordings[connID]
	if !ok {
		return ErrNotRecording
	}
	if r.maxBytes > 0 && int64(len(rec.Audio)+len(chunk)) > r.maxBytes {
		delete(r.recordings, connID)
		return ErrRecordingTooLarge
	}
	rec.Audio = append(rec.Audio, chunk...)
	return nil
}

// Active reports whether connID is recording.
func (r *Recorder) Active(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.recordings[connID]
	return ok
}

// Stop ends the recording and hands it over.
func (r *Recorder) Stop(connID string) (Recording, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recordings[connID]
	if !ok {
		return Recording{}, false
	}
	delete(r.recordings, connID)
	return *rec, true
}

// Discard drops any recording for connID.
func (r *Recorder) Discard(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recordings, connID)
}

// Request converts the recording into a batch request.
func (rec Recording) Request() BatchRequest {
	return BatchRequest{
		RoomID:       rec.RoomID,
		UserID:       rec.UserID,
		LanguageCode: rec.LanguageCode,
		StartedAt:    rec.StartedAt,
		Audio:        rec.Audio,
	}
}
