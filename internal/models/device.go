package models

import (
	"github.com/google/uuid"
	"time"
)

// Device — сессия устройства пользователя. Завершение устройства
// рассылает device_terminated во все соединения аккаунта.
type Device struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"not null;uniqueIndex:idx_devices_user_device"`
	DeviceID     string    `gorm:"not null;uniqueIndex:idx_devices_user_device"`
	DeviceName   string
	RefreshToken string
	IsActive     bool `gorm:"not null;default:true"`
	LastActiveAt time.Time
	CreatedAt    time.Time

	// Связи
	User User `gorm:"foreignKey:UserID"`
}
