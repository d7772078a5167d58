package database

import (
	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
)

func (d *Database) SaveMessage(message *models.Message) error {
	return d.db.Create(message).Error
}

func (d *Database) GetMessage(id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := d.db.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender").
		First(&message, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// GetRoomMessage достает сообщение в пределах конкретной комнаты
func (d *Database) GetRoomMessage(roomID, messageID uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := d.db.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender").
		First(&message, "id = ? AND room_id = ?", messageID, roomID).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (d *Database) UpdateMessage(message *models.Message) error {
	return d.db.Save(message).Error
}

// SoftDeleteMessage очищает содержимое, сохраняя строку ради порядка в ленте
func (d *Database) SoftDeleteMessage(message *models.Message) error {
	message.Body = ""
	message.ImageURL = ""
	message.AudioURL = ""
	message.FileURL = ""
	message.IsDeleted = true
	return d.db.Model(message).Select(
		"body", "image_url", "audio_url", "file_url", "is_deleted", "updated_at",
	).Updates(message).Error
}

// GetRoomMessagesAsc возвращает всю ленту комнаты по времени создания
func (d *Database) GetRoomMessagesAsc(roomID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Preload("Sender").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		Find(&messages).Error
	return messages, err
}

// LastMessage возвращает последнее сообщение комнаты или nil
func (d *Database) LastMessage(roomID uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := d.db.
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Preload("Sender").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// CountUnread считает чужие непрочитанные сообщения в личной комнате.
// Это авторитетный пересчет, которым лечится кэш счетчиков.
func (d *Database) CountUnread(roomID, userID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.Model(&models.Message{}).
		Where("room_id = ? AND is_read = ? AND sender_id != ?", roomID, false, userID).
		Count(&count).Error
	return count, err
}

// MarkRoomMessagesRead помечает прочитанными все чужие сообщения комнаты.
// Возвращает число затронутых строк.
func (d *Database) MarkRoomMessagesRead(roomID, userID uuid.UUID) (int64, error) {
	res := d.db.Model(&models.Message{}).
		Where("room_id = ? AND is_read = ? AND sender_id != ?", roomID, false, userID).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// MarkMessageRead помечает прочитанным одно чужое сообщение
func (d *Database) MarkMessageRead(messageID, userID uuid.UUID) (int64, error) {
	res := d.db.Model(&models.Message{}).
		Where("id = ? AND is_read = ? AND sender_id != ?", messageID, false, userID).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
