// Package stt defines the boundary to Speech-to-Text backends.
package stt

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-room-service/internal/models"
)

// ErrStreamClosed is returned by Send after CloseSend.
var ErrStreamClosed = errors.New("stt: stream closed for sending")

// StreamConfig describes the audio a streaming session will send.
type StreamConfig struct {
	LanguageCode   string
	SampleRateHz   int
	Encoding       string // LINEAR16, MULAW, FLAC, ...
	InterimResults bool
}

// Stream is one open recognition call.
//
// Send and CloseSend are called from a single goroutine; Recv may run
// concurrently on another. Recv returns io.EOF once the backend has
// delivered every result, or the context error if the call was cancelled.
type Stream interface {
	Send(audio []byte) error
	CloseSend() error
	Recv() (models.TranscriptResult, error)
}

// Adapter opens streaming recognition calls (Google, mock, ...).
// Cancelling ctx cancels the backend call.
type Adapter interface {
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// BatchConfig describes a complete recording submitted for batch recognition.
type BatchConfig struct {
	LanguageCode string
	SampleRateHz int
	Encoding     string
}

// BatchTranscriber runs recognition over a complete recording and returns
// segments in recording order.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, cfg BatchConfig) ([]models.Segment, error)
}

// IsAborted reports whether err is the expected result of a caller-initiated
// cancellation rather than a backend failure.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return status.Code(err) == codes.Canceled
}
