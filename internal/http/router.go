// Package http exposes the REST surface and mounts the realtime endpoint.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"voice-room-service/internal/app"
	"voice-room-service/internal/service/chat"
	"voice-room-service/internal/service/transcript"
)

// Deps are the handlers' collaborators. Batch and WS are optional.
type Deps struct {
	Chat           *chat.Service
	Batch          *transcript.BatchProcessor
	WS             http.Handler
	MaxUploadBytes int64
	MaxAudioBytes  int64
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, deps Deps) http.Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = chat.DefaultMaxImageBytes
	}
	if deps.MaxAudioBytes <= 0 {
		deps.MaxAudioBytes = 50 << 20
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if application != nil && !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(2 * time.Minute))

		r.Get("/rooms", h.listRooms)
		r.Post("/rooms", h.createRoom)
		r.Get("/rooms/{roomID}/messages", h.roomMessages)
		r.Post("/rooms/{roomID}/transcriptions", h.transcribeRecording)
		r.Post("/upload", h.uploadImage)
	})

	if deps.WS != nil {
		r.Handle("/ws", deps.WS)
	}

	return r
}
