package models

import (
	"github.com/google/uuid"
	"time"
)

// Роли участников групповой комнаты
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Membership хранит роль и права участника групповой комнаты.
// У каждой группы ровно один owner, назначается при создании и не понижается.
type Membership struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID            uuid.UUID `gorm:"not null;uniqueIndex:idx_membership_room_user"`
	UserID            uuid.UUID `gorm:"not null;uniqueIndex:idx_membership_room_user"`
	Role              string    `gorm:"not null;default:'member';check:role IN ('owner','admin','member')"`
	CanDeleteMessages bool      `gorm:"not null;default:false"`
	CanKick           bool      `gorm:"not null;default:false"`
	CanInvite         bool      `gorm:"not null;default:false"`
	CanManageAdmins   bool      `gorm:"not null;default:false"`
	JoinedAt          time.Time
	LastReadAt        *time.Time

	// Связи
	User User `gorm:"foreignKey:UserID"`
	Room Room `gorm:"foreignKey:RoomID"`
}
