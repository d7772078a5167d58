package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	// PresenceTTL — скользящее окно "онлайн": любой HTTP-запрос или
	// WebSocket-кадр должен уложиться в него, иначе статус истечет сам
	PresenceTTL = 90 * time.Second

	// LastSeenTTL — сколько храним отметку последней активности
	LastSeenTTL = 24 * time.Hour
)

// PresenceStore отслеживает онлайн-статус и last seen в Redis.
// Все операции best-effort: ошибки Redis логируются и не возвращаются,
// чтобы не ронять путь запроса или сообщения.
type PresenceStore struct {
	redis *redis.Client
}

func NewPresenceStore(rdb *redis.Client) *PresenceStore {
	return &PresenceStore{redis: rdb}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:presence:%s", userID)
}

func lastSeenKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:last_seen:%s", userID)
}

// SetOnline продлевает окно онлайна и обновляет last seen
func (p *PresenceStore) SetOnline(ctx context.Context, userID uuid.UUID) {
	if err := p.redis.Set(ctx, presenceKey(userID), 1, PresenceTTL).Err(); err != nil {
		log.Printf("presence: set online failed for %s: %v", userID, err)
	}
	p.touchLastSeen(ctx, userID)
}

// SetOffline немедленно гасит онлайн при чистом отключении.
// Грязный обрыв связи исправится сам по TTL.
func (p *PresenceStore) SetOffline(ctx context.Context, userID uuid.UUID) {
	if err := p.redis.Del(ctx, presenceKey(userID)).Err(); err != nil {
		log.Printf("presence: set offline failed for %s: %v", userID, err)
	}
	p.touchLastSeen(ctx, userID)
}

func (p *PresenceStore) touchLastSeen(ctx context.Context, userID uuid.UUID) {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := p.redis.Set(ctx, lastSeenKey(userID), now, LastSeenTTL).Err(); err != nil {
		log.Printf("presence: touch last seen failed for %s: %v", userID, err)
	}
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) bool {
	n, err := p.redis.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		log.Printf("presence: is online failed for %s: %v", userID, err)
		return false
	}
	return n > 0
}

// LastSeen возвращает отметку последней активности или nil, если она истекла
func (p *PresenceStore) LastSeen(ctx context.Context, userID uuid.UUID) *time.Time {
	raw, err := p.redis.Get(ctx, lastSeenKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("presence: last seen failed for %s: %v", userID, err)
		}
		return nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &ts
}
