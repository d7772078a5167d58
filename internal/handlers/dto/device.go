package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
)

type RegisterDeviceRequest struct {
	DeviceID     string `json:"device_id" binding:"required"`
	DeviceName   string `json:"device_name"`
	RefreshToken string `json:"refresh_token"`
	PushToken    string `json:"push_token"`
}

type DeviceResponse struct {
	ID           uuid.UUID `json:"id"`
	DeviceID     string    `json:"device_id"`
	DeviceName   string    `json:"device_name"`
	IsActive     bool      `json:"is_active"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewDeviceResponse(d *models.Device) DeviceResponse {
	return DeviceResponse{
		ID:           d.ID,
		DeviceID:     d.DeviceID,
		DeviceName:   d.DeviceName,
		IsActive:     d.IsActive,
		LastActiveAt: d.LastActiveAt,
		CreatedAt:    d.CreatedAt,
	}
}
