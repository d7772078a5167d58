package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/handlers/dto"
	"github.com/thereayou/crowdchat/internal/models"
	ws "github.com/thereayou/crowdchat/internal/websocket"
)

func newSessionFixture(t *testing.T) (*chatFixture, *cache.PresenceStore) {
	t.Helper()
	f := newChatFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return f, cache.NewPresenceStore(rdb)
}

func TestSessionMessageFrame(t *testing.T) {
	f, presence := newSessionFixture(t)
	room, alice, bob := f.createDirectRoom(t)

	session := NewRoomSession(f.svc, presence, room, alice)
	client := ws.NewClient(f.hub, nil, alice.ID, alice.Username)
	listener := f.subscribe(t, room.ID, bob.ID)

	err := session.HandleFrame(client, &ws.Frame{Type: ws.TypeMessage, Body: "hi there"})
	require.NoError(t, err)

	ev := nextEvent(t, listener)
	assert.Equal(t, ws.TypeMessage, ev.Type)

	// Отправка продлевает окно присутствия
	assert.True(t, presence.IsOnline(context.Background(), alice.ID))
}

func TestSessionInvalidFramesAreSilentlyDropped(t *testing.T) {
	f, presence := newSessionFixture(t)
	room, alice, bob := f.createDirectRoom(t)

	session := NewRoomSession(f.svc, presence, room, alice)
	client := ws.NewClient(f.hub, nil, alice.ID, alice.Username)
	listener := f.subscribe(t, room.ID, bob.ID)

	// Пустое, слишком длинное, с битым reply — кадр молча пропадает,
	// сессия продолжает жить
	require.NoError(t, session.HandleFrame(client, &ws.Frame{Type: ws.TypeMessage, Body: "   "}))
	require.NoError(t, session.HandleFrame(client, &ws.Frame{
		Type: ws.TypeMessage,
		Body: strings.Repeat("a", models.MaxMessageBody+1),
	}))

	assert.Empty(t, listener.Send)

	// Неизвестный тип тоже не ошибка
	require.NoError(t, session.HandleFrame(client, &ws.Frame{Type: "dance"}))
}

func TestSessionTypingSelfSuppression(t *testing.T) {
	f, presence := newSessionFixture(t)
	room, alice, bob := f.createDirectRoom(t)

	aliceSession := NewRoomSession(f.svc, presence, room, alice)
	aliceClient := ws.NewClient(f.hub, nil, alice.ID, alice.Username)
	aliceClient.SetDeliveryHandler(aliceSession)
	f.hub.JoinGroup(aliceClient, ws.RoomGroup(room.ID))

	bobSession := NewRoomSession(f.svc, presence, room, bob)
	bobClient := ws.NewClient(f.hub, nil, bob.ID, bob.Username)
	bobClient.SetDeliveryHandler(bobSession)
	f.hub.JoinGroup(bobClient, ws.RoomGroup(room.ID))

	require.NoError(t, aliceSession.HandleFrame(aliceClient, &ws.Frame{Type: ws.TypeTyping}))

	// Собеседник видит typing, автор — нет
	ev := nextEvent(t, bobClient)
	assert.Equal(t, ws.TypeTyping, ev.Type)
	assert.Equal(t, alice.ID, ev.UserID)
	assert.Empty(t, aliceClient.Send)
}

func TestSessionMarkReadFrameBroadcastsReceipt(t *testing.T) {
	f, presence := newSessionFixture(t)
	ctx := context.Background()
	room, alice, bob := f.createDirectRoom(t)

	_, err := f.svc.SendMessage(ctx, room, alice, &dto.SendMessageRequest{Body: "unread"})
	require.NoError(t, err)

	session := NewRoomSession(f.svc, presence, room, bob)
	client := ws.NewClient(f.hub, nil, bob.ID, bob.Username)
	listener := f.subscribe(t, room.ID, alice.ID)

	require.NoError(t, session.HandleFrame(client, &ws.Frame{Type: ws.TypeMarkRead}))

	ev := nextEvent(t, listener)
	assert.Equal(t, ws.TypeReadReceipt, ev.Type)
	assert.Equal(t, bob.ID, ev.UserID)

	n, err := f.svc.UnreadCount(ctx, room, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSessionDeliveryMarksForeignMessageRead(t *testing.T) {
	f, presence := newSessionFixture(t)
	ctx := context.Background()
	room, alice, bob := f.createDirectRoom(t)

	bobSession := NewRoomSession(f.svc, presence, room, bob)
	bobClient := ws.NewClient(f.hub, nil, bob.ID, bob.Username)
	bobClient.SetDeliveryHandler(bobSession)
	f.hub.JoinGroup(bobClient, ws.RoomGroup(room.ID))

	msg, err := f.svc.SendMessage(ctx, room, alice, &dto.SendMessageRequest{Body: "seen live"})
	require.NoError(t, err)

	// Сообщение дошло в живую сессию
	ev := nextEvent(t, bobClient)
	assert.Equal(t, ws.TypeMessage, ev.Type)

	// Фоновая пометка прочитанным в конце концов срабатывает
	require.Eventually(t, func() bool {
		got, err := f.db.GetMessage(msg.ID)
		return err == nil && got.IsRead
	}, 2*time.Second, 20*time.Millisecond)
}
