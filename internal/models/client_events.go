package models

// Realtime events received from clients.
const (
	EventSetUser            = "set-user"
	EventJoinRoom           = "join-room"
	EventChatMessage        = "chat-message"
	EventStartTranscribe    = "start-transcribe"
	EventAudioData          = "audio-data"
	EventStopTranscribe     = "stop-transcribe"
	EventStartFileRecording = "start-file-recording"
	EventAudioChunk         = "audio-chunk"
	EventStopFileRecording  = "stop-file-recording"
)

// Realtime events sent to clients.
const (
	EventConnected              = "connected"
	EventTranscribeStarted      = "transcribe-started"
	EventTranscribeResult       = "transcribe-result"
	EventTranscribeStopped      = "transcribe-stopped"
	EventTranscribeError        = "transcribe-error"
	EventNewMessage             = "new-message"
	EventFileRecordingStarted   = "file-recording-started"
	EventFileRecordingStopped   = "file-recording-stopped"
	EventFileTranscribeComplete = "file-transcribe-complete"
	EventFileTranscribeError    = "file-transcribe-error"
	EventError                  = "error"
)

// TranscribeStarted acknowledges start-transcribe.
type TranscribeStarted struct {
	Status       string `json:"status"`
	SessionID    string `json:"sessionId"`
	LanguageCode string `json:"languageCode"`
	Superseded   string `json:"superseded,omitempty"`
}

// TranscribeResult carries one forwarded recognition result.
type TranscribeResult struct {
	SessionID  string  `json:"sessionId"`
	Transcript string  `json:"transcript"`
	IsPartial  bool    `json:"isPartial"`
	Confidence float64 `json:"confidence"`
}

// TranscribeStopped reports the end of a session, either in reply to
// stop-transcribe (stopped, not_found) or because the backend ended it.
type TranscribeStopped struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
}

// StageErrorPayload reports a failure and the stage it happened in.
type StageErrorPayload struct {
	Stage     string `json:"stage"`
	Error     string `json:"error"`
	SessionID string `json:"sessionId,omitempty"`
}

// FileRecordingStatus acknowledges start/stop-file-recording.
type FileRecordingStatus struct {
	Status    string `json:"status"`
	StartedAt string `json:"startedAt,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
}

// FileTranscribeComplete reports a finished batch transcription.
type FileTranscribeComplete struct {
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

// ErrorPayload is sent for rejected client events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
