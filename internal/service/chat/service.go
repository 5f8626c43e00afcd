// Package chat implements rooms and messages: persistence first, then
// the room broadcast and the downstream event.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voice-room-service/internal/apperr"
	"voice-room-service/internal/models"
	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
	"voice-room-service/internal/schema"
	"voice-room-service/internal/storage"
	"voice-room-service/internal/store"
)

// DefaultMaxImageBytes caps image uploads.
const DefaultMaxImageBytes = 5 * 1024 * 1024

// Broadcaster fans an event out to the members of a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID, event string, payload any) int
}

// EventPublisher receives persisted messages for downstream consumers.
type EventPublisher interface {
	PublishMessage(ctx context.Context, key string, event any) error
}

// ImageUploader stores images at a publicly readable URL.
type ImageUploader interface {
	UploadPublic(ctx context.Context, objectName, contentType string, r io.Reader) (storage.Object, error)
}

// History is the message log of a room plus the URLs of its images.
type History struct {
	Messages  []models.Message `json:"messages"`
	ImageURLs []string         `json:"imageUrls"`
}

type createRoomInput struct {
	Name         string `validate:"required,max=255"`
	Participants int    `validate:"gte=0"`
}

type textInput struct {
	RoomID string `validate:"required,max=36"`
	UserID string `validate:"required,max=255"`
	Text   string `validate:"required,max=4000"`
}

// Service owns room and message operations.
type Service struct {
	store         store.Store
	broadcaster   Broadcaster
	publisher     EventPublisher
	uploader      ImageUploader
	validator     *schema.Validator
	maxImageBytes int64
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher publishes every persisted message.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithUploader enables image messages.
func WithUploader(u ImageUploader, maxBytes int64) Option {
	return func(s *Service) {
		s.uploader = u
		if maxBytes > 0 {
			s.maxImageBytes = maxBytes
		}
	}
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(st store.Store, b Broadcaster, opts ...Option) *Service {
	s := &Service{
		store:         st,
		broadcaster:   b,
		validator:     schema.New(),
		maxImageBytes: DefaultMaxImageBytes,
		metrics:       metrics.DefaultMetrics,
		logger:        logging.WithComponent("chat"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Post persists msg and, only once it is stored, broadcasts it to the room
// as new-message and publishes it. A returned error means the message was
// not stored and nothing was broadcast.
func (s *Service) Post(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		s.metrics.RecordPersistError(msg.MessageType)
		return apperr.E(apperr.CodeUnavailable, "chat.Post", "message not saved", err)
	}
	s.metrics.RecordMessagePersisted(msg.MessageType)

	s.broadcaster.Broadcast(ctx, msg.RoomID, models.EventNewMessage, *msg)

	if s.publisher != nil {
		event := models.MessageCreated{
			EventType: models.EventMessageCreated,
			Timestamp: s.now().UnixMilli(),
			Message:   *msg,
		}
		if err := s.publisher.PublishMessage(ctx, msg.RoomID, event); err != nil {
			s.logger.Warn().Err(err).Str("roomId", msg.RoomID).Uint64("messageId", msg.ID).Msg("Failed to publish message event")
		}
	}
	return nil
}

// PostText posts a text message.
func (s *Service) PostText(ctx context.Context, roomID, userID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if err := s.validator.Validate(textInput{RoomID: roomID, UserID: userID, Text: text}); err != nil {
		return models.Message{}, apperr.E(apperr.CodeInvalidArgument, "chat.PostText", err.Error(), nil)
	}

	msg := models.Message{
		RoomID:      roomID,
		UserID:      userID,
		Body:        text,
		MessageType: models.MessageTypeText,
	}
	if err := s.Post(ctx, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Image is an uploaded image file.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PostImage uploads img and posts its URL as an image message.
func (s *Service) PostImage(ctx context.Context, roomID, userID string, img Image) (models.Message, error) {
	const op = "chat.PostImage"

	if s.uploader == nil {
		return models.Message{}, apperr.E(apperr.CodeUnavailable, op, "image uploads are not configured", nil)
	}
	if roomID == "" || userID == "" {
		return models.Message{}, apperr.E(apperr.CodeInvalidArgument, op, "roomId and userId are required", nil)
	}
	if img.Size > s.maxImageBytes {
		return models.Message{}, apperr.E(apperr.CodeTooLarge, op, "image exceeds size limit", nil)
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return models.Message{}, apperr.E(apperr.CodeInvalidArgument, op, "only image files are accepted", nil)
	}
	if _, err := s.room(ctx, op, roomID); err != nil {
		return models.Message{}, err
	}

	obj, err := s.uploader.UploadPublic(ctx, storage.ObjectName("images", img.Filename), img.ContentType, io.LimitReader(img.Body, s.maxImageBytes+1))
	if err != nil {
		s.logger.Error().Err(err).Str("roomId", roomID).Str("filename", img.Filename).Msg("Image upload failed")
		return models.Message{}, apperr.E(apperr.CodeUnavailable, op, "image upload failed", err)
	}

	msg := models.Message{
		RoomID:      roomID,
		UserID:      userID,
		Body:        obj.URL,
		MessageType: models.MessageTypeImage,
	}
	if err := s.Post(ctx, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// CreateRoom creates a room.
func (s *Service) CreateRoom(ctx context.Context, name string, participants int) (models.Room, error) {
	name = strings.TrimSpace(name)
	if err := s.validator.Validate(createRoomInput{Name: name, Participants: participants}); err != nil {
		return models.Room{}, apperr.E(apperr.CodeInvalidArgument, "chat.CreateRoom", err.Error(), nil)
	}

	room := models.Room{Name: name, Participants: participants, CreatedAt: s.now().UTC()}
	if err := s.store.CreateRoom(ctx, &room); err != nil {
		return models.Room{}, apperr.E(apperr.CodeUnavailable, "chat.CreateRoom", "room not saved", err)
	}
	s.logger.Info().Str("roomId", room.ID).Str("name", room.Name).Msg("Room created")
	return room, nil
}

// ListRooms returns every room with its message counts, newest first.
func (s *Service) ListRooms(ctx context.Context) ([]models.RoomSummary, error) {
	rooms, err := s.store.ListRoomsWithCounts(ctx)
	if err != nil {
		return nil, apperr.E(apperr.CodeUnavailable, "chat.ListRooms", "rooms unavailable", err)
	}
	return rooms, nil
}

// History returns the messages of a room in order.
func (s *Service) History(ctx context.Context, roomID string) (History, error) {
	const op = "chat.History"

	if _, err := s.room(ctx, op, roomID); err != nil {
		return History{}, err
	}
	msgs, err := s.store.ListMessages(ctx, roomID)
	if err != nil {
		return History{}, apperr.E(apperr.CodeUnavailable, op, "messages unavailable", err)
	}

	h := History{Messages: msgs, ImageURLs: []string{}}
	if h.Messages == nil {
		h.Messages = []models.Message{}
	}
	for _, m := range msgs {
		if m.MessageType == models.MessageTypeImage {
			h.ImageURLs = append(h.ImageURLs, m.Body)
		}
	}
	return h, nil
}

// GetRoom returns a room or a NOT_FOUND error.
func (s *Service) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	return s.room(ctx, "chat.GetRoom", roomID)
}

func (s *Service) room(ctx context.Context, op, roomID string) (models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Room{}, apperr.E(apperr.CodeNotFound, op, "room not found", err)
	}
	if err != nil {
		return models.Room{}, apperr.E(apperr.CodeUnavailable, op, "room lookup failed", err)
	}
	return room, nil
}
