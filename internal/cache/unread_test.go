package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func staticRecompute(n int64) RecomputeFunc {
	return func() (int64, error) { return n, nil }
}

func failingRecompute() RecomputeFunc {
	return func() (int64, error) { return 0, errors.New("db down") }
}

func TestUnreadBump(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	counters := NewUnreadCounters(rdb)

	roomID := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	participants := []uuid.UUID{sender, receiver}

	counters.Bump(ctx, roomID, participants, sender)
	counters.Bump(ctx, roomID, participants, sender)
	counters.Bump(ctx, roomID, participants, sender)

	got, err := counters.Get(ctx, roomID, receiver, failingRecompute())
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	// Отправителю счетчик обнуляется, в БД за ним не ходим
	got, err = counters.Get(ctx, roomID, sender, failingRecompute())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	// У обоих ключей выставлен TTL
	assert.Greater(t, mr.TTL(unreadKey(roomID, receiver)), time.Duration(0))
	assert.Greater(t, mr.TTL(unreadKey(roomID, sender)), time.Duration(0))
}

func TestUnreadGetCacheMiss(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	counters := NewUnreadCounters(rdb)

	roomID := uuid.New()
	userID := uuid.New()

	// Промах закрывается пересчетом и кэшируется
	got, err := counters.Get(ctx, roomID, userID, staticRecompute(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	// Повторное чтение уже не трогает БД
	got, err = counters.Get(ctx, roomID, userID, failingRecompute())
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestUnreadGetRecomputeError(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	counters := NewUnreadCounters(rdb)

	_, err := counters.Get(ctx, uuid.New(), uuid.New(), failingRecompute())
	assert.Error(t, err)
}

func TestUnreadReset(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	counters := NewUnreadCounters(rdb)

	roomID := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()

	counters.Bump(ctx, roomID, []uuid.UUID{sender, receiver}, sender)
	counters.Reset(ctx, roomID, receiver)

	got, err := counters.Get(ctx, roomID, receiver, failingRecompute())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestUnreadDecrementOneRead(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	counters := NewUnreadCounters(rdb)

	roomID := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	participants := []uuid.UUID{sender, receiver}

	counters.Bump(ctx, roomID, participants, sender)
	counters.Bump(ctx, roomID, participants, sender)

	counters.DecrementOneRead(ctx, roomID, receiver, failingRecompute())

	got, err := counters.Get(ctx, roomID, receiver, failingRecompute())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	// Пол в ноль: лишние декременты не уводят в минус
	counters.DecrementOneRead(ctx, roomID, receiver, failingRecompute())
	counters.DecrementOneRead(ctx, roomID, receiver, failingRecompute())

	got, err = counters.Get(ctx, roomID, receiver, failingRecompute())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestUnreadDecrementOnMissRecomputes(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	counters := NewUnreadCounters(rdb)

	roomID := uuid.New()
	userID := uuid.New()

	// Ключа нет: вместо угадывания — полный пересчет из БД
	counters.DecrementOneRead(ctx, roomID, userID, staticRecompute(4))

	got, err := counters.Get(ctx, roomID, userID, failingRecompute())
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestUnreadCounterExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	counters := NewUnreadCounters(rdb)

	roomID := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()

	counters.Bump(ctx, roomID, []uuid.UUID{sender, receiver}, sender)
	mr.FastForward(UnreadTTL + time.Second)

	// После истечения TTL счетчик восстанавливается пересчетом
	got, err := counters.Get(ctx, roomID, receiver, staticRecompute(9))
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)
}
