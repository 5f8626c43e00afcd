package transcript

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
	"voice-room-service/internal/service/stt"
)

// ErrNoRoom is returned for recordings not bound to a room.
var ErrNoRoom = errors.New("recording is not bound to a room")

// BatchRequest is a complete recording ready for batch recognition.
type BatchRequest struct {
	RoomID       string
	UserID       string
	LanguageCode string
	SampleRateHz int
	Encoding     string
	StartedAt    time.Time // wall-clock start of the recording
	Audio        []byte
}

// BatchProcessor turns a recording into one chat message per segment.
type BatchProcessor struct {
	transcriber stt.BatchTranscriber
	messages    MessagePoster
	defaults    stt.BatchConfig
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewBatchProcessor(transcriber stt.BatchTranscriber, messages MessagePoster, defaults stt.BatchConfig, m *metrics.Metrics) *BatchProcessor {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &BatchProcessor{
		transcriber: transcriber,
		messages:    messages,
		defaults:    defaults,
		metrics:     m,
		logger:      logging.WithComponent("batch-processor"),
	}
}

// Process recognises req.Audio and persists every non-empty segment in
// segment order, timestamped StartedAt + segment end. Recognition runs at
// most once; the first storage failure stops the loop and is returned as a
// storage StageError together with the messages saved so far.
func (p *BatchProcessor) Process(ctx context.Context, req BatchRequest) ([]models.Message, error) {
	if req.RoomID == "" {
		return nil, ErrNoRoom
	}
	if req.UserID == "" {
		req.UserID = AnonymousUser
	}

	cfg := p.defaults
	if req.LanguageCode != "" {
		cfg.LanguageCode = req.LanguageCode
	}
	if req.SampleRateHz > 0 {
		cfg.SampleRateHz = req.SampleRateHz
	}
	if req.Encoding != "" {
		cfg.Encoding = req.Encoding
	}

	logger := p.logger.With().
		Str("roomId", req.RoomID).
		Str("userId", req.UserID).
		Int("bytes", len(req.Audio)).
		Logger()

	started := time.Now()
	segments, err := p.transcriber.Transcribe(ctx, req.Audio, cfg)
	if err != nil {
		p.metrics.RecordRecognitionFailure("batch")
		logger.Error().Err(err).Msg("Batch recognition failed")
		return nil, NewStageError(StageRecognition, err)
	}
	p.metrics.RecordBatch(len(segments), time.Since(started).Seconds())

	saved := make([]models.Message, 0, len(segments))
	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		msg := &models.Message{
			RoomID:      req.RoomID,
			UserID:      req.UserID,
			Body:        text,
			MessageType: models.MessageTypeTranscribe,
			CreatedAt:   req.StartedAt.Add(seg.End).UTC(),
		}
		if err := p.messages.Post(ctx, msg); err != nil {
			lost := 0
			for _, rest := range segments[i:] {
				if strings.TrimSpace(rest.Text) != "" {
					p.metrics.RecordTranscriptLost()
					lost++
				}
			}
			logger.Error().
				Err(err).
				Int("segment", i).
				Int("saved", len(saved)).
				Int("lost", lost).
				Msg("Batch transcript lost, message not saved")
			return saved, NewStageError(StageStorage, err)
		}
		saved = append(saved, *msg)
	}

	logger.Info().
		Int("segments", len(segments)).
		Int("saved", len(saved)).
		Dur("duration", time.Since(started)).
		Msg("Batch transcription complete")
	return saved, nil
}

// ProcessAsync runs Process in the background and reports the outcome to
// connID as file-transcribe-complete or file-transcribe-error.
func (p *BatchProcessor) ProcessAsync(ctx context.Context, dir Directory, connID string, req BatchRequest) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		saved, err := p.Process(ctx, req)
		if err != nil {
			serr := asStageError(err)
			dir.Send(connID, models.EventFileTranscribeError, models.StageErrorPayload{
				Stage: string(serr.Stage),
				Error: serr.Reason(),
			})
			return
		}
		dir.Send(connID, models.EventFileTranscribeComplete, models.FileTranscribeComplete{
			Count:    len(saved),
			Messages: saved,
		})
	}()
	return done
}

func asStageError(err error) *StageError {
	var serr *StageError
	if errors.As(err, &serr) {
		return serr
	}
	return NewStageError(StageRecognition, err)
}
