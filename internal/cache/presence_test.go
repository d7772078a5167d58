package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceOnlineOffline(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewPresenceStore(rdb)

	userID := uuid.New()
	assert.False(t, store.IsOnline(ctx, userID))

	store.SetOnline(ctx, userID)
	assert.True(t, store.IsOnline(ctx, userID))

	store.SetOffline(ctx, userID)
	assert.False(t, store.IsOnline(ctx, userID))

	// Отметка last seen переживает уход в оффлайн
	assert.NotNil(t, store.LastSeen(ctx, userID))
}

func TestPresenceExpiresByTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewPresenceStore(rdb)

	userID := uuid.New()
	store.SetOnline(ctx, userID)

	// Грязный обрыв: ключ истекает сам, без SetOffline
	mr.FastForward(PresenceTTL + time.Second)
	assert.False(t, store.IsOnline(ctx, userID))
	assert.NotNil(t, store.LastSeen(ctx, userID))
}

func TestPresenceLastSeenRoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewPresenceStore(rdb)

	userID := uuid.New()
	assert.Nil(t, store.LastSeen(ctx, userID))

	before := time.Now().UTC().Add(-time.Second)
	store.SetOnline(ctx, userID)

	seen := store.LastSeen(ctx, userID)
	require.NotNil(t, seen)
	assert.True(t, seen.After(before))
}
