// Package models defines the data structures shared across the service.
package models

import "time"

// TranscriptResult is one recognition hypothesis from a streaming backend.
type TranscriptResult struct {
	Text       string  `json:"text"`
	IsPartial  bool    `json:"isPartial"`
	Confidence float64 `json:"confidence"`
}

// Segment is one timestamped unit of text within a batch recording.
// Offsets are relative to the start of the recording.
type Segment struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// TranscriptPartial is published for every partial result forwarded to a client.
type TranscriptPartial struct {
	EventType    string `json:"eventType" validate:"required"`
	ConnectionID string `json:"connectionId" validate:"required"`
	SessionID    string `json:"sessionId" validate:"required"`
	RoomID       string `json:"roomId,omitempty"`
	LanguageCode string `json:"languageCode"`
	Timestamp    int64  `json:"timestamp" validate:"gt=0"`
	Text         string `json:"text"`
}

// TranscriptFinal is published for every final result forwarded to a client.
type TranscriptFinal struct {
	EventType    string  `json:"eventType" validate:"required"`
	ConnectionID string  `json:"connectionId" validate:"required"`
	SessionID    string  `json:"sessionId" validate:"required"`
	RoomID       string  `json:"roomId,omitempty"`
	UserID       string  `json:"userId,omitempty"`
	LanguageCode string  `json:"languageCode"`
	Timestamp    int64   `json:"timestamp" validate:"gt=0"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// MessageCreated is published after a chat message has been persisted.
type MessageCreated struct {
	EventType string  `json:"eventType" validate:"required"`
	Timestamp int64   `json:"timestamp" validate:"gt=0"`
	Message   Message `json:"message"`
}

// Event type names.
const (
	EventTranscriptPartial = "room.transcript.partial"
	EventTranscriptFinal   = "room.transcript.final"
	EventMessageCreated    = "room.message.created"
)

// SessionInfo identifies a live transcription session.
type SessionInfo struct {
	ID           string    `json:"sessionId"`
	ConnectionID string    `json:"connectionId"`
	LanguageCode string    `json:"languageCode"`
	StartedAt    time.Time `json:"startedAt"`
}
