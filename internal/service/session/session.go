package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
	"voice-room-service/internal/service/stt"
	"voice-room-service/internal/service/transcript"
)

// Sink receives everything a session produces. Calls for one session are
// made from a single goroutine, in order.
type Sink interface {
	// HandleResult is called for every result the policy accepts.
	HandleResult(ctx context.Context, info models.SessionInfo, result models.TranscriptResult)

	// HandleError is called once when the backend fails. The session
	// closes afterwards.
	HandleError(ctx context.Context, info models.SessionInfo, err *transcript.StageError)

	// HandleEnded is called when the session closes without a stop request,
	// after a backend error or when the backend ends the stream.
	HandleEnded(ctx context.Context, info models.SessionInfo)
}

// Session owns one backend recognition call: a bounded audio channel
// feeding the backend, and a bounded result channel drained into the Sink.
type Session struct {
	info      models.SessionInfo
	lifecycle *Lifecycle
	adapter   stt.Adapter
	sink      Sink
	policy    Policy
	cfg       stt.StreamConfig
	resultBuf int
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	// base outlives the session so drained results can still be persisted
	// after stop.
	base   context.Context
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex // serialises Feed against stop
	audio       chan []byte
	audioClosed bool

	done  chan struct{}
	onEnd func(*Session)
}

func newSession(base context.Context, info models.SessionInfo, adapter stt.Adapter, sink Sink, opts Options, onEnd func(*Session)) *Session {
	ctx, cancel := context.WithCancel(base)
	cfg := opts.Config
	cfg.LanguageCode = info.LanguageCode

	return &Session{
		info:      info,
		lifecycle: NewLifecycle(info.ID),
		adapter:   adapter,
		sink:      sink,
		policy:    opts.Policy,
		cfg:       cfg,
		resultBuf: opts.ResultBuffer,
		metrics:   opts.Metrics,
		logger:    logging.WithSession(info.ConnectionID, info.ID, info.LanguageCode),
		base:      base,
		ctx:       ctx,
		cancel:    cancel,
		audio:     make(chan []byte, opts.AudioBuffer),
		done:      make(chan struct{}),
		onEnd:     onEnd,
	}
}

// Info returns the session identity.
func (s *Session) Info() models.SessionInfo { return s.info }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.lifecycle.State() }

// Done is closed once the session reaches CLOSED.
func (s *Session) Done() <-chan struct{} { return s.done }

// Feed enqueues a chunk for the backend. The state check and the enqueue
// happen under one lock, so a chunk racing with stop is dropped rather
// than written to a closed channel. Returns false if the chunk was dropped.
func (s *Session) Feed(chunk []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audioClosed || !s.lifecycle.Accepting() {
		s.metrics.RecordAudioDropped("inactive")
		return false
	}

	select {
	case s.audio <- chunk:
		s.metrics.RecordAudioReceived(len(chunk))
		return true
	default:
		s.metrics.RecordAudioDropped("buffer_full")
		s.logger.Warn().Int("bytes", len(chunk)).Msg("Audio buffer full, chunk dropped")
		return false
	}
}

// stop marks the session inactive, cancels the backend call and closes the
// audio channel. Safe to call more than once.
func (s *Session) stop() {
	s.mu.Lock()
	s.lifecycle.BeginStop()
	if !s.audioClosed {
		s.audioClosed = true
		close(s.audio)
	}
	s.mu.Unlock()

	s.cancel()
}

// run opens the backend call and pumps audio and results until the call
// ends. It is the dispatcher: results reach the Sink from this goroutine.
func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()

	started := time.Now()

	stream, err := s.adapter.Open(s.ctx, s.cfg)
	if err != nil {
		s.finish(err, started)
		return
	}

	if err := s.lifecycle.MarkStreaming(); err != nil {
		s.logger.Debug().Err(err).Msg("Session stopped while backend call was opening")
	} else {
		s.logger.Info().Msg("Transcription session streaming")
	}

	results := make(chan models.TranscriptResult, s.resultBuf)
	recvErr := make(chan error, 1)

	go s.sendLoop(stream)
	go s.recvLoop(stream, results, recvErr)

	for r := range results {
		if !s.policy.Accept(r) {
			s.metrics.RecordPartialSuppressed()
			continue
		}
		s.metrics.RecordTranscript(r.IsPartial)
		s.sink.HandleResult(s.base, s.info, r)
	}

	s.finish(<-recvErr, started)
}

// sendLoop forwards audio until the channel is closed or the call is
// cancelled, then half-closes the backend stream.
func (s *Session) sendLoop(stream stt.Stream) {
	defer func() {
		if err := stream.CloseSend(); err != nil {
			s.logger.Debug().Err(err).Msg("CloseSend failed")
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := stream.Send(chunk); err != nil {
				// The receiver reports the underlying failure.
				s.logger.Debug().Err(err).Msg("Audio send failed")
				return
			}
		}
	}
}

// recvLoop pulls results into the bounded results channel. It blocks when
// the dispatcher falls behind.
func (s *Session) recvLoop(stream stt.Stream, results chan<- models.TranscriptResult, errc chan<- error) {
	defer close(results)
	for {
		r, err := stream.Recv()
		if err != nil {
			errc <- err
			return
		}
		results <- r
	}
}

func (s *Session) finish(err error, started time.Time) {
	stoppedByCaller := s.lifecycle.State() == StateStopping || s.ctx.Err() != nil

	switch {
	case err == nil || errors.Is(err, io.EOF):
		s.logger.Info().Dur("duration", time.Since(started)).Msg("Backend ended transcription stream")
	case stoppedByCaller || stt.IsAborted(err):
		s.logger.Debug().Err(err).Msg("Transcription session aborted")
	default:
		s.logger.Error().Err(err).Msg("Transcription backend failed")
		s.metrics.RecordSessionFailed(string(transcript.StageRecognition))
		s.metrics.RecordRecognitionFailure("streaming")
		s.sink.HandleError(s.base, s.info, transcript.NewStageError(transcript.StageRecognition, err))
	}

	s.mu.Lock()
	if !s.audioClosed {
		s.audioClosed = true
		close(s.audio)
	}
	s.lifecycle.Close()
	s.mu.Unlock()

	if !stoppedByCaller {
		if s.onEnd != nil {
			s.onEnd(s)
		}
		s.sink.HandleEnded(s.base, s.info)
	}
}
