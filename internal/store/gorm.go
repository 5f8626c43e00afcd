package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voice-room-service/internal/models"
)

// GormStore persists rooms and messages in MySQL or Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore connects and migrates the chat tables.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&models.Room{}, &models.Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (s *GormStore) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Room{}, ErrNotFound
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListRoomsWithCounts returns rooms newest first with their message and
// image counts.
func (s *GormStore) ListRoomsWithCounts(ctx context.Context) ([]models.RoomSummary, error) {
	var rooms []models.RoomSummary
	if err := roomsWithCountsQuery(s.db.WithContext(ctx)).Scan(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func roomsWithCountsQuery(db *gorm.DB) *gorm.DB {
	return db.
		Table("chat_rooms AS r").
		Select("r.id, r.name, r.participants, r.created_at, "+
			"COUNT(m.id) AS message_count, "+
			"COALESCE(SUM(CASE WHEN m.message_type = ? THEN 1 ELSE 0 END), 0) AS image_count",
			models.MessageTypeImage).
		Joins("LEFT JOIN messages m ON m.room_id = r.id").
		Group("r.id, r.name, r.participants, r.created_at").
		Order("r.created_at DESC")
}

func (s *GormStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := messagesQuery(s.db.WithContext(ctx), roomID).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// messagesQuery selects a room's messages oldest first; id breaks ties
// between messages stored in the same instant.
func messagesQuery(db *gorm.DB, roomID string) *gorm.DB {
	return db.
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Order("id ASC")
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
