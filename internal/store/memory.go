package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-room-service/internal/models"
)

// MemoryStore keeps rooms and messages in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]models.Room
	messages []models.Message
	nextID   uint64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]models.Room),
		now:   time.Now,
	}
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = *room
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, roomID string) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrNotFound
	}
	return room, nil
}

func (s *MemoryStore) ListRoomsWithCounts(_ context.Context) ([]models.RoomSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]*models.RoomSummary, len(s.rooms))
	out := make([]models.RoomSummary, 0, len(s.rooms))
	for _, r := range s.rooms {
		counts[r.ID] = &models.RoomSummary{Room: r}
	}
	for _, m := range s.messages {
		sum, ok := counts[m.RoomID]
		if !ok {
			continue
		}
		sum.MessageCount++
		if m.MessageType == models.MessageTypeImage {
			sum.ImageCount++
		}
	}
	for _, sum := range counts {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg.ID = s.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, roomID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
