package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(t *testing.T, typ EventType, roomID uuid.UUID, userID uuid.UUID, payload interface{}) *Event {
	t.Helper()
	ev, err := NewEvent(typ, &roomID, userID, payload)
	require.NoError(t, err)
	return ev
}

func receiveEvent(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return &ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func TestBroadcastReachesGroupMembers(t *testing.T) {
	hub := NewHub(nil)
	roomID := uuid.New()
	key := RoomGroup(roomID)

	alice := NewClient(hub, nil, uuid.New(), "alice")
	bob := NewClient(hub, nil, uuid.New(), "bob")
	outsider := NewClient(hub, nil, uuid.New(), "carol")

	hub.JoinGroup(alice, key)
	hub.JoinGroup(bob, key)
	hub.JoinGroup(outsider, RoomGroup(uuid.New()))

	ev := testEvent(t, TypeMessage, roomID, alice.UserID, map[string]string{"body": "hi"})
	hub.Broadcast(key, ev)

	got := receiveEvent(t, alice)
	assert.Equal(t, TypeMessage, got.Type)
	got = receiveEvent(t, bob)
	assert.Equal(t, alice.UserID, got.UserID)

	assert.Empty(t, outsider.Send)
}

func TestBroadcastPreservesSenderOrder(t *testing.T) {
	hub := NewHub(nil)
	roomID := uuid.New()
	key := RoomGroup(roomID)

	receiver := NewClient(hub, nil, uuid.New(), "bob")
	hub.JoinGroup(receiver, key)

	sender := uuid.New()
	for i := 0; i < 10; i++ {
		ev := testEvent(t, TypeMessage, roomID, sender, map[string]int{"seq": i})
		hub.Broadcast(key, ev)
	}

	for i := 0; i < 10; i++ {
		got := receiveEvent(t, receiver)
		var payload struct {
			Seq int `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(got.Data, &payload))
		assert.Equal(t, i, payload.Seq)
	}
}

func TestBroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(nil)
	roomID := uuid.New()
	key := RoomGroup(roomID)

	slow := NewClient(hub, nil, uuid.New(), "slow")
	hub.JoinGroup(slow, key)

	// Канал никто не читает: лишние доставки молча теряются,
	// Broadcast не блокируется
	total := cap(slow.Send) + 50
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			hub.Broadcast(key, testEvent(t, TypeMessage, roomID, uuid.New(), nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Equal(t, cap(slow.Send), len(slow.Send))
}

func TestLeaveGroupStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	roomID := uuid.New()
	key := RoomGroup(roomID)

	client := NewClient(hub, nil, uuid.New(), "alice")
	hub.JoinGroup(client, key)
	require.Equal(t, 1, hub.GroupSize(key))

	hub.LeaveGroup(client, key)
	assert.Equal(t, 0, hub.GroupSize(key))

	hub.Broadcast(key, testEvent(t, TypeMessage, roomID, uuid.New(), nil))
	assert.Empty(t, client.Send)
}

func TestUnregisterLeavesAllGroups(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	roomKey := RoomGroup(uuid.New())
	userKey := UserGroup(uuid.New())

	client := NewClient(hub, nil, uuid.New(), "alice")
	hub.Register(client)
	hub.JoinGroup(client, roomKey)
	hub.JoinGroup(client, userKey)

	hub.Unregister(client)

	require.Eventually(t, func() bool {
		return hub.GroupSize(roomKey) == 0 && hub.GroupSize(userKey) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestUserHasSession(t *testing.T) {
	hub := NewHub(nil)
	roomID := uuid.New()
	key := RoomGroup(roomID)

	userID := uuid.New()
	client := NewClient(hub, nil, userID, "alice")
	hub.JoinGroup(client, key)

	assert.True(t, hub.UserHasSession(key, userID))
	assert.False(t, hub.UserHasSession(key, uuid.New()))

	hub.LeaveGroup(client, key)
	assert.False(t, hub.UserHasSession(key, userID))
}

// suppressOwnTyping повторяет правило сессии: собственный typing
// не возвращается отправителю
type suppressOwnTyping struct {
	userID uuid.UUID
}

func (s *suppressOwnTyping) HandleDelivery(c *Client, ev *Event) bool {
	return !(ev.Type == TypeTyping && ev.UserID == s.userID)
}

func TestDeliveryHandlerSuppressesEvents(t *testing.T) {
	hub := NewHub(nil)
	roomID := uuid.New()
	key := RoomGroup(roomID)

	typist := NewClient(hub, nil, uuid.New(), "alice")
	typist.SetDeliveryHandler(&suppressOwnTyping{userID: typist.UserID})
	watcher := NewClient(hub, nil, uuid.New(), "bob")

	hub.JoinGroup(typist, key)
	hub.JoinGroup(watcher, key)

	hub.Broadcast(key, testEvent(t, TypeTyping, roomID, typist.UserID, nil))

	got := receiveEvent(t, watcher)
	assert.Equal(t, TypeTyping, got.Type)
	assert.Empty(t, typist.Send)

	// Чужой typing и обычные сообщения проходят
	hub.Broadcast(key, testEvent(t, TypeTyping, roomID, watcher.UserID, nil))
	got = receiveEvent(t, typist)
	assert.Equal(t, TypeTyping, got.Type)
}

func TestStopReleasesLatePumps(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := NewClient(hub, nil, uuid.New(), "alice")
	hub.Register(client)

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients[client.ID]
		return ok
	}, time.Second, 10*time.Millisecond)

	hub.Stop()

	// Дорабатывающий ReadPump после остановки не должен зависнуть
	// на канале без читателя
	done := make(chan struct{})
	go func() {
		hub.Unregister(client)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after Stop")
	}

	// Очередь уже закрыта: отправка не паникует
	ev := testEvent(t, TypeMessage, uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, client.SendEvent(ev), ErrClientQueueFull)
	client.Deliver(ev)
}

func TestBridgeFansOutAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	nodeA := NewHub(NewRedisBridge(rdb))
	nodeB := NewHub(NewRedisBridge(rdb))
	go nodeA.Run()
	go nodeB.Run()
	defer nodeA.Stop()
	defer nodeB.Stop()

	roomID := uuid.New()
	key := RoomGroup(roomID)

	remote := NewClient(nodeB, nil, uuid.New(), "bob")
	nodeB.JoinGroup(remote, key)

	// Подписка моста поднимается асинхронно, поэтому шлем с повторами
	require.Eventually(t, func() bool {
		nodeA.Broadcast(key, testEvent(t, TypeMessage, roomID, uuid.New(), map[string]string{"body": "cross-node"}))
		return len(remote.Send) > 0
	}, 3*time.Second, 50*time.Millisecond)

	got := receiveEvent(t, remote)
	assert.Equal(t, TypeMessage, got.Type)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got.Data, &payload))
	assert.Equal(t, "cross-node", payload["body"])
}

func TestBridgePreservesSenderOrderAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	nodeA := NewHub(NewRedisBridge(rdb))
	nodeB := NewHub(NewRedisBridge(rdb))
	go nodeA.Run()
	go nodeB.Run()
	defer nodeA.Stop()
	defer nodeB.Stop()

	roomID := uuid.New()
	key := RoomGroup(roomID)

	remote := NewClient(nodeB, nil, uuid.New(), "bob")
	nodeB.JoinGroup(remote, key)

	// Разогрев: ждем, пока подписка моста поднимется
	require.Eventually(t, func() bool {
		nodeA.Broadcast(key, testEvent(t, TypeTyping, roomID, uuid.New(), nil))
		return len(remote.Send) > 0
	}, 3*time.Second, 50*time.Millisecond)

	sender := uuid.New()
	const total = 100
	for i := 0; i < total; i++ {
		nodeA.Broadcast(key, testEvent(t, TypeMessage, roomID, sender, map[string]int{"seq": i}))
	}

	// Разогревочные typing пропускаем; message обязаны прийти строго
	// в порядке отправки
	next := 0
	deadline := time.After(3 * time.Second)
	for next < total {
		select {
		case data := <-remote.Send:
			var ev Event
			require.NoError(t, json.Unmarshal(data, &ev))
			if ev.Type != TypeMessage {
				continue
			}
			var payload struct {
				Seq int `json:"seq"`
			}
			require.NoError(t, json.Unmarshal(ev.Data, &payload))
			require.Equal(t, next, payload.Seq)
			next++
		case <-deadline:
			t.Fatalf("timed out waiting for event %d", next)
		}
	}
}
