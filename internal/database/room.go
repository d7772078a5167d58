package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateRoom(room *models.Room) error {
	return d.db.Create(room).Error
}

func (d *Database) GetRoom(id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.Preload("Members").First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// GetUserRooms возвращает комнаты пользователя, свежие сверху
func (d *Database) GetUserRooms(userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.
		Joins("JOIN room_members rm ON rm.room_id = rooms.id").
		Where("rm.user_id = ?", userID).
		Order("rooms.updated_at DESC").
		Preload("Members").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// SearchGroups ищет публичные группы по подстроке имени
func (d *Database) SearchGroups(search string) ([]models.Room, error) {
	var rooms []models.Room
	query := d.db.Where("is_group = ? AND is_private = ?", true, false)
	if search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}
	err := query.Preload("Members").Find(&rooms).Error
	return rooms, err
}

func (d *Database) AddUserToRoom(userID, roomID uuid.UUID) error {
	var user models.User
	var room models.Room

	if err := d.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	if err := d.db.First(&room, "id = ?", roomID).Error; err != nil {
		return err
	}

	return d.db.Model(&room).Association("Members").Append(&user)
}

func (d *Database) RemoveUserFromRoom(userID, roomID uuid.UUID) error {
	var user models.User
	var room models.Room

	if err := d.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	if err := d.db.First(&room, "id = ?", roomID).Error; err != nil {
		return err
	}

	return d.db.Model(&room).Association("Members").Delete(&user)
}

// GetOrCreateDirectRoom находит личную комнату двух пользователей или создает новую
func (d *Database) GetOrCreateDirectRoom(user1ID, user2ID uuid.UUID) (*models.Room, error) {
	var room models.Room

	err := d.db.
		Joins("JOIN room_members rm1 ON rm1.room_id = rooms.id").
		Joins("JOIN room_members rm2 ON rm2.room_id = rooms.id").
		Where("rooms.is_group = ? AND rm1.user_id = ? AND rm2.user_id = ?", false, user1ID, user2ID).
		First(&room).Error

	if err == nil {
		d.db.Model(&room).Association("Members").Find(&room.Members)
		return &room, nil
	}

	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	room = models.Room{
		IsGroup:   false,
		CreatedBy: user1ID,
		CreatedAt: time.Now(),
	}

	if err := d.db.Create(&room).Error; err != nil {
		return nil, err
	}

	if err := d.AddUserToRoom(user1ID, room.ID); err != nil {
		return nil, err
	}

	if err := d.AddUserToRoom(user2ID, room.ID); err != nil {
		return nil, err
	}

	d.db.Model(&room).Association("Members").Find(&room.Members)

	return &room, nil
}

// TouchRoom обновляет updated_at комнаты, чтобы она всплыла в списке
func (d *Database) TouchRoom(id uuid.UUID) error {
	return d.db.Model(&models.Room{}).Where("id = ?", id).Update("updated_at", time.Now()).Error
}

func (d *Database) DeleteRoom(id uuid.UUID) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Message{}, "room_id = ?", id).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Membership{}, "room_id = ?", id).Error; err != nil {
			return err
		}

		var room models.Room
		if err := tx.First(&room, "id = ?", id).Error; err != nil {
			return err
		}

		if err := tx.Model(&room).Association("Members").Clear(); err != nil {
			return err
		}

		return tx.Delete(&room).Error
	})
}
