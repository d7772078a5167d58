package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
	"gorm.io/gorm/clause"
)

// RegisterDevice создает или оживляет сессию устройства
func (d *Database) RegisterDevice(device *models.Device) error {
	device.IsActive = true
	device.LastActiveAt = time.Now()
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"device_name":    device.DeviceName,
			"refresh_token":  device.RefreshToken,
			"is_active":      true,
			"last_active_at": device.LastActiveAt,
		}),
	}).Create(device).Error
}

func (d *Database) GetDevice(id uuid.UUID) (*models.Device, error) {
	var device models.Device
	if err := d.db.First(&device, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (d *Database) ListDevices(userID uuid.UUID) ([]models.Device, error) {
	var devices []models.Device
	err := d.db.Where("user_id = ?", userID).Order("last_active_at DESC").Find(&devices).Error
	return devices, err
}

// DeactivateDevice гасит сессию и стирает refresh-токен
func (d *Database) DeactivateDevice(id uuid.UUID) error {
	return d.db.Model(&models.Device{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":     false,
		"refresh_token": "",
	}).Error
}
