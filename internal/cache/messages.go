package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// MessagesTTL — короткое окно кэша ленты комнаты
const MessagesTTL = 30 * time.Second

// RoomMessages кэширует сериализованную ленту комнаты. Любая мутация
// набора сообщений обязана вызвать Invalidate до рассылки события,
// иначе в окне TTL уедет устаревший список.
type RoomMessages struct {
	redis *redis.Client
}

func NewRoomMessages(rdb *redis.Client) *RoomMessages {
	return &RoomMessages{redis: rdb}
}

func messagesKey(roomID uuid.UUID) string {
	return fmt.Sprintf("chat:room:%s:messages", roomID)
}

// Get возвращает кэшированную ленту или nil при промахе
func (r *RoomMessages) Get(ctx context.Context, roomID uuid.UUID) []byte {
	raw, err := r.redis.Get(ctx, messagesKey(roomID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("messages cache: get %s: %v", roomID, err)
		}
		return nil
	}
	return raw
}

func (r *RoomMessages) Put(ctx context.Context, roomID uuid.UUID, data []byte) {
	if err := r.redis.Set(ctx, messagesKey(roomID), data, MessagesTTL).Err(); err != nil {
		log.Printf("messages cache: put %s: %v", roomID, err)
	}
}

func (r *RoomMessages) Invalidate(ctx context.Context, roomID uuid.UUID) {
	if err := r.redis.Del(ctx, messagesKey(roomID)).Err(); err != nil {
		log.Printf("messages cache: invalidate %s: %v", roomID, err)
	}
}
