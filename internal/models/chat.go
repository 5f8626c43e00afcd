package models

import "time"

// Message types.
const (
	MessageTypeText       = "text"
	MessageTypeTranscribe = "transcribe"
	MessageTypeImage      = "image"
)

// Room is a named chat channel. Rooms are never deleted in-band.
type Room struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Name         string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Participants int       `gorm:"column:participants;default:0" json:"participants"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the gorm default.
func (Room) TableName() string { return "chat_rooms" }

// RoomSummary is a room with its message counts.
type RoomSummary struct {
	Room
	MessageCount int64 `gorm:"column:message_count" json:"message_count"`
	ImageCount   int64 `gorm:"column:image_count" json:"image_count"`
}

// Message is an append-only chat message. For image messages Body holds
// the object URL.
type Message struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoomID      string    `gorm:"column:room_id;type:varchar(36);index:idx_messages_room_created,priority:1;not null" json:"room_id"`
	UserID      string    `gorm:"column:user_id;type:varchar(255);not null" json:"user_id"`
	Body        string    `gorm:"column:message;type:text" json:"message"`
	MessageType string    `gorm:"column:message_type;type:varchar(20);default:text" json:"message_type"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_messages_room_created,priority:2" json:"created_at"`
}

// TableName overrides the gorm default.
func (Message) TableName() string { return "messages" }
