package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) GetMembership(roomID, userID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	if err := d.db.Where("room_id = ? AND user_id = ?", roomID, userID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *Database) SaveMembership(m *models.Membership) error {
	return d.db.Save(m).Error
}

// UpsertMembership создает членство или обновляет водяной знак существующего
func (d *Database) UpsertMembership(roomID, userID uuid.UUID) error {
	now := time.Now()
	m := models.Membership{
		RoomID:     roomID,
		UserID:     userID,
		Role:       models.RoleMember,
		JoinedAt:   now,
		LastReadAt: &now,
	}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_read_at": now}),
	}).Create(&m).Error
}

// GetOrCreateMembership нужна для назначения прав пользователю без членства
func (d *Database) GetOrCreateMembership(roomID, userID uuid.UUID) (*models.Membership, error) {
	m, err := d.GetMembership(roomID, userID)
	if err == nil {
		return m, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	created := models.Membership{
		RoomID:   roomID,
		UserID:   userID,
		Role:     models.RoleMember,
		JoinedAt: time.Now(),
	}
	if err := d.db.Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (d *Database) DeleteMembership(roomID, userID uuid.UUID) error {
	return d.db.Delete(&models.Membership{}, "room_id = ? AND user_id = ?", roomID, userID).Error
}

func (d *Database) ListMemberships(roomID uuid.UUID) ([]models.Membership, error) {
	var ms []models.Membership
	err := d.db.Where("room_id = ?", roomID).Preload("User").Find(&ms).Error
	return ms, err
}

// BumpWatermark отмечает группу прочитанной до текущего момента
func (d *Database) BumpWatermark(roomID, userID uuid.UUID) error {
	return d.db.Model(&models.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_at", time.Now()).Error
}

// CountUnreadByWatermark считает непрочитанное в группе по водяному знаку
func (d *Database) CountUnreadByWatermark(roomID, userID uuid.UUID) (int64, error) {
	m, err := d.GetMembership(roomID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			m = nil
		} else {
			return 0, err
		}
	}

	query := d.db.Model(&models.Message{}).
		Where("room_id = ? AND sender_id != ?", roomID, userID)
	if m != nil && m.LastReadAt != nil {
		query = query.Where("created_at > ?", *m.LastReadAt)
	}

	var count int64
	err = query.Count(&count).Error
	return count, err
}
