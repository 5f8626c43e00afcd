// Package ws is the realtime transport: one websocket per client carrying
// JSON {"event","data"} frames, with binary frames used for raw audio.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice-room-service/internal/apperr"
	"voice-room-service/internal/hub"
	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
	"voice-room-service/internal/service/audio"
	"voice-room-service/internal/service/chat"
	"voice-room-service/internal/service/session"
	"voice-room-service/internal/service/transcript"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Config tunes the transport.
type Config struct {
	SendBuffer      int
	AllowedOrigins  []string // empty allows all
	DefaultLanguage string
}

// Deps are the services a connection talks to.
type Deps struct {
	Hub      *hub.Hub
	Sessions *session.Registry
	Chat     *chat.Service
	Recorder *transcript.Recorder
	Batch    *transcript.BatchProcessor
	Metrics  *metrics.Metrics
}

// Handler upgrades HTTP requests to realtime connections.
type Handler struct {
	deps     Deps
	cfg      Config
	base     context.Context
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a Handler. base bounds background work such as batch
// transcription that outlives a single request.
func NewHandler(base context.Context, deps Deps, cfg Config) *Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	h := &Handler{
		deps:   deps,
		cfg:    cfg,
		base:   base,
		logger: logging.WithComponent("ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	out := h.deps.Hub.Register(connID, h.cfg.SendBuffer)
	cn := &conn{
		id:     connID,
		ws:     c,
		h:      h,
		logger: logging.WithConnection(connID),
	}
	cn.logger.Info().Str("remote", r.RemoteAddr).Msg("Client connected")

	go cn.writePump(out)
	h.deps.Hub.Send(connID, models.EventConnected, map[string]string{"connectionId": connID})

	cn.readPump()
	cn.close()
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type conn struct {
	id     string
	ws     *websocket.Conn
	h      *Handler
	logger zerolog.Logger
}

func (c *conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		if kind == websocket.BinaryMessage {
			c.h.deps.Metrics.RecordEvent("binary")
			c.audio(data)
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			c.fail("", apperr.E(apperr.CodeInvalidArgument, "ws.read", "frames must be {\"event\",\"data\"} objects", err))
			continue
		}
		c.h.deps.Metrics.RecordEvent(msg.Event)
		c.dispatch(msg)
	}
}

// writePump drains the hub channel until Unregister closes it.
func (c *conn) writePump(out <-chan hub.Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case f, ok := <-out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(f); err != nil {
				c.logger.Debug().Err(err).Str("event", f.Event).Msg("Write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) close() {
	status := c.h.deps.Sessions.Disconnect(c.id)
	if c.h.deps.Recorder != nil {
		c.h.deps.Recorder.Discard(c.id)
	}
	c.h.deps.Hub.Unregister(c.id)
	c.logger.Info().Str("session", string(status)).Msg("Client disconnected")
}

func (c *conn) dispatch(msg inbound) {
	switch msg.Event {
	case models.EventSetUser:
		c.setUser(msg.Data)
	case models.EventJoinRoom:
		c.joinRoom(msg.Data)
	case models.EventChatMessage:
		c.chatMessage(msg.Data)
	case models.EventStartTranscribe:
		c.startTranscribe(msg.Data)
	case models.EventAudioData:
		c.audioData(msg.Data)
	case models.EventStopTranscribe:
		c.stopTranscribe()
	case models.EventStartFileRecording:
		c.startFileRecording(msg.Data)
	case models.EventAudioChunk:
		c.audioChunk(msg.Data)
	case models.EventStopFileRecording:
		c.stopFileRecording()
	default:
		c.fail(msg.Event, apperr.E(apperr.CodeInvalidArgument, "ws.dispatch", "unknown event", nil))
	}
}

func (c *conn) send(event string, payload any) {
	c.h.deps.Hub.Send(c.id, event, payload)
}

func (c *conn) fail(event string, err error) {
	c.logger.Debug().Err(err).Str("event", event).Msg("Rejected client event")
	c.send(models.EventError, models.ErrorPayload{
		Code:    string(apperr.CodeOf(err)),
		Message: apperr.Message(err),
		Event:   event,
	})
}

func (c *conn) setUser(data json.RawMessage) {
	userID := stringField(data, "userId")
	if userID == "" {
		c.fail(models.EventSetUser, apperr.E(apperr.CodeInvalidArgument, "ws.setUser", "userId is required", nil))
		return
	}
	c.h.deps.Hub.SetUser(c.id, userID)
}

func (c *conn) joinRoom(data json.RawMessage) {
	roomID := stringField(data, "roomId")
	if roomID == "" {
		c.fail(models.EventJoinRoom, apperr.E(apperr.CodeInvalidArgument, "ws.joinRoom", "roomId is required", nil))
		return
	}
	prev, _ := c.h.deps.Hub.Join(c.id, roomID)
	c.logger.Info().Str("roomId", roomID).Str("previousRoomId", prev).Msg("Joined room")
}

func (c *conn) chatMessage(data json.RawMessage) {
	var in struct {
		RoomID  string `json:"roomId"`
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		c.fail(models.EventChatMessage, apperr.E(apperr.CodeInvalidArgument, "ws.chatMessage", "invalid chat message", err))
		return
	}

	userID, roomID := c.h.deps.Hub.Identity(c.id)
	if in.RoomID == "" {
		in.RoomID = roomID
	}
	if in.UserID == "" {
		in.UserID = userID
	}
	if in.UserID == "" {
		in.UserID = transcript.AnonymousUser
	}

	if _, err := c.h.deps.Chat.PostText(c.h.base, in.RoomID, in.UserID, in.Message); err != nil {
		c.fail(models.EventChatMessage, err)
	}
}

func (c *conn) startTranscribe(data json.RawMessage) {
	lang := stringField(data, "languageCode")
	if lang == "" {
		lang = c.h.cfg.DefaultLanguage
	}

	handle := c.h.deps.Sessions.Start(c.id, lang)
	c.send(models.EventTranscribeStarted, models.TranscribeStarted{
		Status:       "started",
		SessionID:    handle.ID,
		LanguageCode: handle.LanguageCode,
		Superseded:   handle.Superseded,
	})
}

func (c *conn) stopTranscribe() {
	info, _ := c.h.deps.Sessions.Active(c.id)
	status := c.h.deps.Sessions.Stop(c.id)
	c.send(models.EventTranscribeStopped, models.TranscribeStopped{
		Status:    string(status),
		SessionID: info.ID,
	})
}

func (c *conn) audioData(data json.RawMessage) {
	chunk, ok := audio.Normalize(data)
	if !ok || len(chunk) == 0 {
		c.logger.Debug().Int("bytes", len(data)).Msg("Unusable audio frame dropped")
		c.h.deps.Metrics.RecordAudioDropped("invalid")
		return
	}
	c.h.deps.Sessions.Feed(c.id, chunk)
}

// audio routes a binary frame to the file recording when one is active,
// otherwise to the live session.
func (c *conn) audio(chunk []byte) {
	if c.h.deps.Recorder != nil && c.h.deps.Recorder.Active(c.id) {
		c.appendRecording(chunk)
		return
	}
	c.h.deps.Sessions.Feed(c.id, chunk)
}

func (c *conn) startFileRecording(data json.RawMessage) {
	if c.h.deps.Recorder == nil || c.h.deps.Batch == nil {
		c.fail(models.EventStartFileRecording, apperr.E(apperr.CodeUnavailable, "ws.startFileRecording", "file recording is not available", nil))
		return
	}
	userID, roomID := c.h.deps.Hub.Identity(c.id)
	if roomID == "" {
		c.fail(models.EventStartFileRecording, apperr.E(apperr.CodeInvalidArgument, "ws.startFileRecording", "join a room before recording", nil))
		return
	}
	if userID == "" {
		userID = transcript.AnonymousUser
	}
	lang := stringField(data, "languageCode")
	if lang == "" {
		lang = c.h.cfg.DefaultLanguage
	}

	started := c.h.deps.Recorder.Start(c.id, roomID, userID, lang)
	c.send(models.EventFileRecordingStarted, models.FileRecordingStatus{
		Status:    "recording",
		StartedAt: started.Format(time.RFC3339Nano),
	})
}

func (c *conn) audioChunk(data json.RawMessage) {
	var wrapped struct {
		Chunk json.RawMessage `json:"chunk"`
	}
	if json.Unmarshal(data, &wrapped) == nil && len(wrapped.Chunk) > 0 {
		data = wrapped.Chunk
	}
	chunk, ok := audio.Normalize(data)
	if !ok || len(chunk) == 0 {
		c.h.deps.Metrics.RecordAudioDropped("invalid")
		return
	}
	c.appendRecording(chunk)
}

func (c *conn) appendRecording(chunk []byte) {
	if c.h.deps.Recorder == nil {
		return
	}
	err := c.h.deps.Recorder.Append(c.id, chunk)
	switch {
	case err == nil:
	case errors.Is(err, transcript.ErrRecordingTooLarge):
		c.fail(models.EventAudioChunk, apperr.E(apperr.CodeTooLarge, "ws.audioChunk", "recording exceeds size limit", err))
	default:
		c.h.deps.Metrics.RecordAudioDropped("no_recording")
	}
}

func (c *conn) stopFileRecording() {
	if c.h.deps.Recorder == nil || c.h.deps.Batch == nil {
		c.fail(models.EventStopFileRecording, apperr.E(apperr.CodeUnavailable, "ws.stopFileRecording", "file recording is not available", nil))
		return
	}
	rec, ok := c.h.deps.Recorder.Stop(c.id)
	if !ok {
		c.fail(models.EventStopFileRecording, apperr.E(apperr.CodeNotFound, "ws.stopFileRecording", "no recording in progress", nil))
		return
	}

	c.send(models.EventFileRecordingStopped, models.FileRecordingStatus{
		Status: "processing",
		Bytes:  int64(len(rec.Audio)),
	})
	c.h.deps.Batch.ProcessAsync(c.h.base, c.h.deps.Hub, c.id, rec.Request())
}

// stringField accepts either a bare JSON string or an object carrying key.
func stringField(data json.RawMessage, key string) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]any
	if json.Unmarshal(data, &obj) != nil {
		return ""
	}
	v, _ := obj[key].(string)
	return strings.TrimSpace(v)
}
