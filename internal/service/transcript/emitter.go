package transcript

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
)

// AnonymousUser authors transcripts from connections that never declared
// a user id.
const AnonymousUser = "anonymous"

// Directory resolves connection identity and delivers events to a single
// connection.
type Directory interface {
	Identity(connID string) (userID, roomID string)
	Send(connID, event string, payload any) bool
}

// MessagePoster persists a chat message and announces it to its room.
// The returned error is always a persistence failure.
type MessagePoster interface {
	Post(ctx context.Context, msg *models.Message) error
}

// Publisher receives transcript events for downstream consumers.
type Publisher interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
}

// Emitter routes session results: every accepted result goes back to the
// originating connection; non-empty finals on a connection that joined a
// room become transcribe messages in that room.
type Emitter struct {
	dir       Directory
	messages  MessagePoster
	publisher Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEmitter creates an Emitter. publisher may be nil.
func NewEmitter(dir Directory, messages MessagePoster, publisher Publisher, m *metrics.Metrics) *Emitter {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Emitter{
		dir:       dir,
		messages:  messages,
		publisher: publisher,
		metrics:   m,
		logger:    logging.WithComponent("transcript-emitter"),
		now:       time.Now,
	}
}

// HandleResult forwards r to its connection and persists it when it is a
// final with text and the connection is in a room.
func (e *Emitter) HandleResult(ctx context.Context, info models.SessionInfo, r models.TranscriptResult) {
	e.dir.Send(info.ConnectionID, models.EventTranscribeResult, models.TranscribeResult{
		SessionID:  info.ID,
		Transcript: r.Text,
		IsPartial:  r.IsPartial,
		Confidence: r.Confidence,
	})

	userID, roomID := e.dir.Identity(info.ConnectionID)
	if userID == "" {
		userID = AnonymousUser
	}
	e.publish(ctx, info, r, userID, roomID)

	if r.IsPartial {
		return
	}
	text := strings.TrimSpace(r.Text)
	if text == "" || roomID == "" {
		return
	}

	msg := &models.Message{
		RoomID:      roomID,
		UserID:      userID,
		Body:        text,
		MessageType: models.MessageTypeTranscribe,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.messages.Post(ctx, msg); err != nil {
		e.metrics.RecordTranscriptLost()
		e.logger.Error().
			Err(err).
			Str("connectionId", info.ConnectionID).
			Str("sessionId", info.ID).
			Str("roomId", roomID).
			Str("transcript", text).
			Msg("Final transcript lost, message not saved")

		serr := NewStageError(StageStorage, err)
		e.dir.Send(info.ConnectionID, models.EventTranscribeError, models.StageErrorPayload{
			Stage:     string(serr.Stage),
			Error:     serr.Reason(),
			SessionID: info.ID,
		})
	}
}

// HandleError reports a failed session to its connection.
func (e *Emitter) HandleError(_ context.Context, info models.SessionInfo, err *StageError) {
	e.dir.Send(info.ConnectionID, models.EventTranscribeError, models.StageErrorPayload{
		Stage:     string(err.Stage),
		Error:     err.Reason(),
		SessionID: info.ID,
	})
}

// HandleEnded tells the connection its session is gone.
func (e *Emitter) HandleEnded(_ context.Context, info models.SessionInfo) {
	e.dir.Send(info.ConnectionID, models.EventTranscribeStopped, models.TranscribeStopped{
		Status:    "ended",
		SessionID: info.ID,
	})
}

func (e *Emitter) publish(ctx context.Context, info models.SessionInfo, r models.TranscriptResult, userID, roomID string) {
	if e.publisher == nil {
		return
	}

	var err error
	ts := e.now().UnixMilli()
	if r.IsPartial {
		err = e.publisher.PublishPartial(ctx, info.ConnectionID, models.TranscriptPartial{
			EventType:    models.EventTranscriptPartial,
			ConnectionID: info.ConnectionID,
			SessionID:    info.ID,
			RoomID:       roomID,
			LanguageCode: info.LanguageCode,
			Timestamp:    ts,
			Text:         r.Text,
		})
	} else {
		err = e.publisher.PublishFinal(ctx, info.ConnectionID, models.TranscriptFinal{
			EventType:    models.EventTranscriptFinal,
			ConnectionID: info.ConnectionID,
			SessionID:    info.ID,
			RoomID:       roomID,
			UserID:       userID,
			LanguageCode: info.LanguageCode,
			Timestamp:    ts,
			Text:         r.Text,
			Confidence:   r.Confidence,
		})
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("sessionId", info.ID).Bool("partial", r.IsPartial).Msg("Failed to publish transcript event")
	}
}
