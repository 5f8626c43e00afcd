// Package store persists chat rooms and messages.
package store

import (
	"context"
	"errors"
	"fmt"

	"voice-room-service/internal/models"
)

// ErrNotFound is returned when a room does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the chat persistence boundary. Messages are append-only and are
// listed in (created_at, id) order.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	ListRoomsWithCounts(ctx context.Context) ([]models.RoomSummary, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	Close() error
}

// Open returns the store for driver: mysql, postgres or memory.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "mysql", "postgres":
		return NewGormStore(driver, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
