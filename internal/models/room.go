package models

import (
	"github.com/google/uuid"
	"time"
)

type Room struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsGroup     bool      `gorm:"not null;default:false"`
	Name        string
	Description string
	IsPrivate   bool `gorm:"not null;default:false"`
	AvatarURL   string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Связи
	Members  []User    `gorm:"many2many:room_members"`
	Messages []Message `gorm:"foreignKey:RoomID"`
}

// HasMember проверяет участие пользователя по предзагруженному списку
func (r *Room) HasMember(userID uuid.UUID) bool {
	for _, m := range r.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// OtherMember возвращает собеседника в личной комнате
func (r *Room) OtherMember(userID uuid.UUID) *User {
	if r.IsGroup {
		return nil
	}
	for i := range r.Members {
		if r.Members[i].ID != userID {
			return &r.Members[i]
		}
	}
	return nil
}
