package models

import (
	"github.com/google/uuid"
	"time"
)

// Виды сообщений
const (
	MessageKindNormal = "normal"
	MessageKindSystem = "system"
	MessageKindCall   = "call"
)

// MaxMessageBody — предел длины текста сообщения
const MaxMessageBody = 2000

type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomID    uuid.UUID  `gorm:"not null;index:idx_messages_room_created"`
	SenderID  uuid.UUID  `gorm:"not null"`
	ReplyToID *uuid.UUID `gorm:"type:uuid"`
	Body      string     `gorm:"type:text"`
	Kind      string     `gorm:"not null;default:'normal'"`

	ImageURL      string
	AudioURL      string
	AudioDuration *float64
	AudioSize     *int64
	FileURL       string
	FileName      string
	FileSize      *int64

	IsRead    bool `gorm:"not null;default:false;index"`
	IsEdited  bool `gorm:"not null;default:false"`
	IsDeleted bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"index:idx_messages_room_created"`
	UpdatedAt time.Time

	// Связи
	Sender  User     `gorm:"foreignKey:SenderID"`
	Room    Room     `gorm:"foreignKey:RoomID"`
	ReplyTo *Message `gorm:"foreignKey:ReplyToID"`
}

// HasMedia сообщает, есть ли у сообщения вложение
func (m *Message) HasMedia() bool {
	return m.ImageURL != "" || m.AudioURL != "" || m.FileURL != ""
}
