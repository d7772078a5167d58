package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// UnreadTTL — время жизни кэшированного счетчика непрочитанных
const UnreadTTL = time.Hour

// RecomputeFunc пересчитывает счетчик из БД. Кэш — только оптимизация:
// значение всегда восстановимо пересчетом по сообщениям.
type RecomputeFunc func() (int64, error)

// UnreadCounters — кэш счетчиков непрочитанных по паре (комната, пользователь).
// Используется только для личных комнат; группы считаются по водяному знаку.
// Счетчик советующий (бейдж), не авторитетный: гонка INCR и сброса дает
// небольшую погрешность, которая лечится на ближайшем промахе кэша.
type UnreadCounters struct {
	redis *redis.Client
}

func NewUnreadCounters(rdb *redis.Client) *UnreadCounters {
	return &UnreadCounters{redis: rdb}
}

func unreadKey(roomID, userID uuid.UUID) string {
	return fmt.Sprintf("chat:room:%s:unread:%s", roomID, userID)
}

// Bump обрабатывает новое сообщение: отправителю — ноль, остальным — плюс один
func (u *UnreadCounters) Bump(ctx context.Context, roomID uuid.UUID, participantIDs []uuid.UUID, senderID uuid.UUID) {
	for _, pid := range participantIDs {
		key := unreadKey(roomID, pid)
		if pid == senderID {
			if err := u.redis.Set(ctx, key, 0, UnreadTTL).Err(); err != nil {
				log.Printf("unread: reset sender counter %s: %v", key, err)
			}
			continue
		}
		n, err := u.redis.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("unread: incr %s: %v", key, err)
			continue
		}
		// INCR по отсутствующему ключу создает его без TTL
		if n == 1 {
			if err := u.redis.Expire(ctx, key, UnreadTTL).Err(); err != nil {
				log.Printf("unread: expire %s: %v", key, err)
			}
		}
	}
}

// Get читает счетчик cache-aside: промах закрывается пересчетом из БД
func (u *UnreadCounters) Get(ctx context.Context, roomID, userID uuid.UUID, recompute RecomputeFunc) (int64, error) {
	key := unreadKey(roomID, userID)
	n, err := u.redis.Get(ctx, key).Int64()
	if err == nil {
		return n, nil
	}
	if err != redis.Nil {
		log.Printf("unread: get %s: %v", key, err)
	}

	count, err := recompute()
	if err != nil {
		return 0, err
	}
	if err := u.redis.Set(ctx, key, count, UnreadTTL).Err(); err != nil {
		log.Printf("unread: populate %s: %v", key, err)
	}
	return count, nil
}

// Reset обнуляет счетчик при открытии комнаты
func (u *UnreadCounters) Reset(ctx context.Context, roomID, userID uuid.UUID) {
	key := unreadKey(roomID, userID)
	if err := u.redis.Set(ctx, key, 0, UnreadTTL).Err(); err != nil {
		log.Printf("unread: reset %s: %v", key, err)
	}
}

// DecrementOneRead уменьшает счетчик на единицу с полом в ноль.
// На промахе кэша не гадаем, а делаем полный пересчет.
func (u *UnreadCounters) DecrementOneRead(ctx context.Context, roomID, userID uuid.UUID, recompute RecomputeFunc) {
	key := unreadKey(roomID, userID)
	n, err := u.redis.Get(ctx, key).Int64()
	if err != nil {
		if err != redis.Nil {
			log.Printf("unread: get %s: %v", key, err)
		}
		count, rerr := recompute()
		if rerr != nil {
			log.Printf("unread: recompute %s: %v", key, rerr)
			return
		}
		if serr := u.redis.Set(ctx, key, count, UnreadTTL).Err(); serr != nil {
			log.Printf("unread: populate %s: %v", key, serr)
		}
		return
	}

	if n > 0 {
		n--
	}
	if err := u.redis.Set(ctx, key, n, UnreadTTL).Err(); err != nil {
		log.Printf("unread: decrement %s: %v", key, err)
	}
}
