package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"voice-room-service/internal/apperr"
	"voice-room-service/internal/models"
	"voice-room-service/internal/service/chat"
	"voice-room-service/internal/service/transcript"
)

type handlers struct {
	deps Deps
}

type createRoomRequest struct {
	Name         string `json:"name"`
	Participants int    `json:"participants"`
}

func (h *handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.deps.Chat.ListRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []models.RoomSummary{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, r, apperr.E(apperr.CodeInvalidArgument, "http.createRoom", "invalid JSON body", err))
		return
	}
	room, err := h.deps.Chat.CreateRoom(r.Context(), req.Name, req.Participants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *handlers) roomMessages(w http.ResponseWriter, r *http.Request) {
	hist, err := h.deps.Chat.History(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *handlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	const op = "http.uploadImage"

	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.deps.MaxUploadBytes); err != nil {
		writeError(w, r, multipartError(op, err))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperr.E(apperr.CodeInvalidArgument, op, "image file is required", err))
		return
	}
	defer file.Close()

	msg, err := h.deps.Chat.PostImage(r.Context(), r.FormValue("roomId"), r.FormValue("userId"), chat.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  msg,
		"imageUrl": msg.Body,
	})
}

func (h *handlers) transcribeRecording(w http.ResponseWriter, r *http.Request) {
	const op = "http.transcribeRecording"

	if h.deps.Batch == nil {
		writeError(w, r, apperr.E(apperr.CodeUnavailable, op, "batch transcription is not available", nil))
		return
	}
	roomID := chi.URLParam(r, "roomID")
	if _, err := h.deps.Chat.GetRoom(r.Context(), roomID); err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxAudioBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, multipartError(op, err))
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, apperr.E(apperr.CodeInvalidArgument, op, "audio file is required", err))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apperr.E(apperr.CodeInvalidArgument, op, "could not read audio", err))
		return
	}
	startedAt, err := parseRecordingStart(r.FormValue("recordingStart"))
	if err != nil {
		writeError(w, r, apperr.E(apperr.CodeInvalidArgument, op, "recordingStart must be RFC3339 or unix milliseconds", err))
		return
	}
	userID := r.FormValue("userId")
	if userID == "" {
		userID = transcript.AnonymousUser
	}

	saved, err := h.deps.Batch.Process(r.Context(), transcript.BatchRequest{
		RoomID:       roomID,
		UserID:       userID,
		LanguageCode: r.FormValue("languageCode"),
		StartedAt:    startedAt,
		Audio:        audio,
	})
	if err != nil {
		var serr *transcript.StageError
		if errors.As(err, &serr) {
			writeJSON(w, stageStatus(serr.Stage), map[string]any{
				"stage":    serr.Stage,
				"error":    serr.Reason(),
				"count":    len(saved),
				"messages": saved,
			})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FileTranscribeComplete{Count: len(saved), Messages: saved})
}

// parseRecordingStart accepts RFC3339 or unix milliseconds; empty means now.
func parseRecordingStart(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Now().UTC(), nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func stageStatus(stage transcript.Stage) int {
	if stage == transcript.StageRecognition {
		return http.StatusBadGateway
	}
	return http.StatusServiceUnavailable
}

func multipartError(op string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.E(apperr.CodeTooLarge, op, "request body too large", err)
	}
	return apperr.E(apperr.CodeInvalidArgument, op, "multipart form expected", err)
}

type errorBody struct {
	Error struct {
		Code    apperr.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")

	var body errorBody
	body.Error.Code = apperr.CodeOf(err)
	body.Error.Message = apperr.Message(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
