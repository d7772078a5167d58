package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
)

func (d *Database) CreateCall(call *models.Call) error {
	return d.db.Create(call).Error
}

func (d *Database) GetCall(id uuid.UUID) (*models.Call, error) {
	var call models.Call
	if err := d.db.Preload("Caller").Preload("Callee").First(&call, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &call, nil
}

// ForceEndActiveCalls завершает все нетерминальные звонки комнаты.
// Новый звонок всегда выигрывает — прежний принудительно получает ended.
func (d *Database) ForceEndActiveCalls(roomID uuid.UUID) error {
	return d.db.Model(&models.Call{}).
		Where("room_id = ? AND status IN ?", roomID, models.ActiveCallStatuses).
		Updates(map[string]interface{}{
			"status":   models.CallStatusEnded,
			"ended_at": time.Now(),
		}).Error
}

// ActiveCallForUser возвращает нетерминальный звонок пользователя, если есть
func (d *Database) ActiveCallForUser(userID uuid.UUID) (*models.Call, error) {
	var call models.Call
	err := d.db.
		Where("(caller_id = ? OR callee_id = ?) AND status IN ?", userID, userID, models.ActiveCallStatuses).
		Order("created_at DESC").
		Preload("Caller").Preload("Callee").
		First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// UpdateCallStatus пишет статус и отметки времени звонка
func (d *Database) UpdateCallStatus(call *models.Call) error {
	return d.db.Model(call).Select("status", "started_at", "ended_at", "duration").Updates(call).Error
}

// ListCallHistory возвращает последние звонки пользователя
func (d *Database) ListCallHistory(userID uuid.UUID, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := d.db.
		Where("caller_id = ? OR callee_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Preload("Caller").Preload("Callee").
		Find(&calls).Error
	return calls, err
}
