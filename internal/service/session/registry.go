package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
	"voice-room-service/internal/service/stt"
)

// Status is the outcome of a stop request.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusNotFound Status = "not_found"
)

// Options configures sessions created by a Registry.
type Options struct {
	Config       stt.StreamConfig // LanguageCode is the default for Start
	Policy       Policy
	AudioBuffer  int // frames buffered ahead of the backend
	ResultBuffer int // results buffered ahead of the Sink
	Metrics      *metrics.Metrics
}

// DefaultOptions returns options matching the service defaults.
func DefaultOptions() Options {
	return Options{
		Config: stt.StreamConfig{
			LanguageCode:   "ko-KR",
			SampleRateHz:   16000,
			Encoding:       "LINEAR16",
			InterimResults: true,
		},
		Policy:       Policy{MinPartialChars: DefaultMinPartialChars},
		AudioBuffer:  64,
		ResultBuffer: 32,
	}
}

// Handle describes a session returned by Start.
type Handle struct {
	models.SessionInfo
	Superseded string `json:"superseded,omitempty"` // id of the session this one replaced
}

// Registry maps connection ids to their live session. At most one session
// exists per connection; Start on a connection that already has one stops
// the old session before registering the new one.
type Registry struct {
	base    context.Context
	adapter stt.Adapter
	sink    Sink
	opts    Options
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry. base bounds every session's lifetime and
// is the context handed to the Sink.
func NewRegistry(base context.Context, adapter stt.Adapter, sink Sink, opts Options) *Registry {
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	if opts.AudioBuffer <= 0 {
		opts.AudioBuffer = DefaultOptions().AudioBuffer
	}
	if opts.ResultBuffer <= 0 {
		opts.ResultBuffer = DefaultOptions().ResultBuffer
	}
	if opts.Config.LanguageCode == "" {
		opts.Config.LanguageCode = DefaultOptions().Config.LanguageCode
	}

	return &Registry{
		base:     base,
		adapter:  adapter,
		sink:     sink,
		opts:     opts,
		metrics:  opts.Metrics,
		logger:   logging.WithComponent("session-registry"),
		sessions: make(map[string]*Session),
	}
}

// Start registers a new session for connID and opens the backend call
// asynchronously. It never blocks on the backend: open failures arrive
// later through the Sink.
func (r *Registry) Start(connID, languageCode string) Handle {
	if languageCode == "" {
		languageCode = r.opts.Config.LanguageCode
	}

	info := models.SessionInfo{
		ID:           uuid.NewString(),
		ConnectionID: connID,
		LanguageCode: languageCode,
		StartedAt:    time.Now().UTC(),
	}
	s := newSession(r.base, info, r.adapter, r.sink, r.opts, r.remove)
	h := Handle{SessionInfo: info}

	r.mu.Lock()
	if old, ok := r.sessions[connID]; ok {
		old.stop()
		r.ended(old)
		r.metrics.RecordSessionSuperseded()
		h.Superseded = old.info.ID
	}
	r.sessions[connID] = s
	r.mu.Unlock()

	r.metrics.RecordSessionStart()
	go s.run()

	ev := r.logger.Info().
		Str("connectionId", connID).
		Str("sessionId", info.ID).
		Str("languageCode", languageCode)
	if h.Superseded != "" {
		ev = ev.Str("superseded", h.Superseded)
	}
	ev.Msg("Transcription session started")

	return h
}

// Stop stops and removes the session for connID. Stopping a connection
// without a session returns StatusNotFound.
func (r *Registry) Stop(connID string) Status {
	r.mu.Lock()
	s, ok := r.sessions[connID]
	if ok {
		delete(r.sessions, connID)
	}
	r.mu.Unlock()

	if !ok {
		return StatusNotFound
	}

	s.stop()
	r.ended(s)

	r.logger.Info().
		Str("connectionId", connID).
		Str("sessionId", s.info.ID).
		Msg("Transcription session stopped")
	return StatusStopped
}

// Disconnect releases everything held for a closed connection.
func (r *Registry) Disconnect(connID string) Status {
	return r.Stop(connID)
}

// Feed routes an audio chunk to the connection's session. Chunks for
// connections without a live session, and empty chunks, are dropped.
func (r *Registry) Feed(connID string, chunk []byte) bool {
	if len(chunk) == 0 {
		r.metrics.RecordAudioDropped("empty")
		return false
	}

	r.mu.Lock()
	s := r.sessions[connID]
	r.mu.Unlock()

	if s == nil {
		r.metrics.RecordAudioDropped("no_session")
		r.logger.Debug().Str("connectionId", connID).Msg("Audio for connection without session dropped")
		return false
	}
	return s.Feed(chunk)
}

// Active returns the live session for connID, if any.
func (r *Registry) Active(connID string) (models.SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return models.SessionInfo{}, false
	}
	return s.info, true
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown stops every session and waits for them to close or for ctx.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.stop()
		r.ended(s)
	}

	for _, s := range all {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.logger.Info().Int("sessions", len(all)).Msg("Session registry shut down")
	return nil
}

// remove drops s from the map if it is still the registered session for
// its connection. Sessions call it when they end without a stop request.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	cur, ok := r.sessions[s.info.ConnectionID]
	if ok && cur == s {
		delete(r.sessions, s.info.ConnectionID)
	}
	r.mu.Unlock()

	if ok && cur == s {
		r.ended(s)
	}
}

func (r *Registry) ended(s *Session) {
	r.metrics.RecordSessionEnd(time.Since(s.info.StartedAt).Seconds())
}
