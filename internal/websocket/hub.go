package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType определяет типы исходящих событий
type EventType string

const (
	// Системные типы
	TypePing EventType = "ping"
	TypePong EventType = "pong"

	// Входящие кадры
	TypeMessage  EventType = "message"
	TypeTyping   EventType = "typing"
	TypeMarkRead EventType = "mark_read"

	// Исходящие события
	TypeMessageUpdated   EventType = "message_updated"
	TypeMessageDeleted   EventType = "message_deleted"
	TypeReadReceipt      EventType = "read_receipt"
	TypeCallSignal       EventType = "call_signal"
	TypeDeviceTerminated EventType = "device_terminated"
	TypeError            EventType = "error"
)

// Event — конверт события, уходящего подписчикам группы
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent собирает конверт с сериализованной полезной нагрузкой
func NewEvent(t EventType, roomID *uuid.UUID, userID uuid.UUID, payload interface{}) (*Event, error) {
	ev := &Event{
		Type:      t,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Data = data
	}
	return ev, nil
}

// Frame — входящий кадр от клиента
type Frame struct {
	Type    EventType  `json:"type"`
	Body    string     `json:"body"`
	ReplyTo *uuid.UUID `json:"reply_to,omitempty"`
}

// Два пространства групп: комната и все соединения аккаунта

// RoomGroup — адрес рассылки всем соединениям, открывшим комнату
func RoomGroup(roomID uuid.UUID) string {
	return "room:" + roomID.String()
}

// UserGroup — адрес рассылки всем устройствам пользователя
func UserGroup(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Publisher рассылает событие подписчикам группы. Интерфейс позволяет
// подменять hub в тестах обработчиков.
type Publisher interface {
	Broadcast(groupKey string, ev *Event)
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Подписчики по строковому ключу группы (room:<id> или user:<id>)
	groups map[string]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Мост в Redis Pub/Sub для развертывания в несколько узлов
	bridge *RedisBridge

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub. bridge может быть nil для одноузлового режима.
func NewHub(bridge *RedisBridge) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		groups:     make(map[string]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		bridge:     bridge,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run запускает hub и, если настроен, слушателя моста
func (h *Hub) Run() {
	if h.bridge != nil {
		go h.bridge.Listen(h.ctx, h.deliverLocal)
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.groups = make(map[string]map[uuid.UUID]*Client)
}

// Register регистрирует нового клиента. После Stop — no-op,
// чтобы дорабатывающие пампы не повисли на канале без читателя.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	log.Printf("Client registered: %s (User: %s)", client.ID, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		for key := range client.groups {
			h.leaveGroupUnsafe(client, key)
		}

		delete(h.clients, client.ID)
		client.closeSend()

		log.Printf("Client unregistered: %s (User: %s)", client.ID, client.UserID)
	}
}

// JoinGroup подписывает клиента на группу
func (h *Hub) JoinGroup(client *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[key]; !ok {
		h.groups[key] = make(map[uuid.UUID]*Client)
	}
	h.groups[key][client.ID] = client

	client.mu.Lock()
	client.groups[key] = true
	client.mu.Unlock()
}

// LeaveGroup отписывает клиента от группы
func (h *Hub) LeaveGroup(client *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveGroupUnsafe(client, key)
}

func (h *Hub) leaveGroupUnsafe(client *Client, key string) {
	if group, ok := h.groups[key]; ok {
		delete(group, client.ID)
		if len(group) == 0 {
			delete(h.groups, key)
		}
	}

	client.mu.Lock()
	delete(client.groups, key)
	client.mu.Unlock()
}

// Broadcast доставляет событие всем подписчикам группы хотя бы один раз.
// Доставка fire-and-forget: переполненный или закрытый канал клиента
// роняет только эту доставку, остальные получатели не страдают.
// Порядок событий одного автора внутри группы сохраняется.
func (h *Hub) Broadcast(groupKey string, ev *Event) {
	h.deliverLocal(groupKey, ev)

	// Публикация в мост синхронная: Redis Pub/Sub сохраняет порядок
	// публикаций, поэтому порядок одного автора доезжает и до чужих узлов
	if h.bridge != nil {
		if err := h.bridge.Publish(context.Background(), groupKey, ev); err != nil {
			log.Printf("hub: bridge publish to %s failed: %v", groupKey, err)
		}
	}
}

func (h *Hub) deliverLocal(groupKey string, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.groups[groupKey] {
		client.Deliver(ev)
	}
}

// GroupSize возвращает число локальных подписчиков группы
func (h *Hub) GroupSize(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[key])
}

// UserHasSession сообщает, есть ли у пользователя живое соединение в группе.
// Используется, чтобы не слать push тем, кто и так смотрит в комнату.
func (h *Hub) UserHasSession(groupKey string, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.groups[groupKey] {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ev := Event{
		Type:      TypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	for _, client := range h.clients {
		client.enqueue(data)
	}
}
