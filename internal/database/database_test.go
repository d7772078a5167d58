package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thereayou/crowdchat/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	// Отдельная in-memory база на каждый тест
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return NewDatabase(db)
}

var userSeq int

func createTestUser(t *testing.T, d *Database) *models.User {
	t.Helper()
	userSeq++
	user := &models.User{
		Username:     fmt.Sprintf("user%d_%s", userSeq, uuid.NewString()[:8]),
		Email:        fmt.Sprintf("user%d_%s@example.com", userSeq, uuid.NewString()[:8]),
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, d.SaveUser(user))
	return user
}

func createDirectRoom(t *testing.T, d *Database) (*models.Room, *models.User, *models.User) {
	t.Helper()
	alice := createTestUser(t, d)
	bob := createTestUser(t, d)
	room, err := d.GetOrCreateDirectRoom(alice.ID, bob.ID)
	require.NoError(t, err)
	return room, alice, bob
}

func createMessage(t *testing.T, d *Database, roomID, senderID uuid.UUID, body string) *models.Message {
	t.Helper()
	msg := &models.Message{
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		Kind:      models.MessageKindNormal,
		CreatedAt: time.Now(),
	}
	require.NoError(t, d.SaveMessage(msg))
	return msg
}
