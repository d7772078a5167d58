package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер кадра
	maxFrameSize = 64 * 1024 // 64KB
)

// FrameHandler обрабатывает входящие кадры соединения
type FrameHandler interface {
	HandleFrame(client *Client, frame *Frame) error
}

// DeliveryHandler перехватывает доставку события конкретному соединению.
// Возврат false подавляет отправку в сокет. Здесь живут правила сессии:
// не показывать собственный typing и помечать чужое сообщение прочитанным.
type DeliveryHandler interface {
	HandleDelivery(client *Client, ev *Event) bool
}

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub

	groups   map[string]bool
	delivery DeliveryHandler
	closed   bool
	mu       sync.RWMutex
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, username string) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		groups:   make(map[string]bool),
	}
}

// SetDeliveryHandler устанавливает перехватчик доставки для этой сессии
func (c *Client) SetDeliveryHandler(h DeliveryHandler) {
	c.mu.Lock()
	c.delivery = h
	c.mu.Unlock()
}

// Deliver передает событие в сокет с учетом правил сессии.
// Не блокируется: при переполненном канале доставка молча теряется.
func (c *Client) Deliver(ev *Event) {
	c.mu.RLock()
	handler := c.delivery
	c.mu.RUnlock()

	if handler != nil && !handler.HandleDelivery(c, ev) {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("client %s: marshal event: %v", c.ID, err)
		return
	}

	c.enqueue(data)
}

// enqueue кладет данные в очередь, если соединение еще живо.
// Блокировка чтения исключает гонку с closeSend.
func (c *Client) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend закрывает очередь ровно один раз. Вызывается только hub'ом.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump читает кадры от клиента
func (c *Client) ReadPump(handler FrameHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		err := c.Conn.ReadJSON(&frame)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if frame.Type == TypePong {
			continue
		}

		if handler != nil {
			// Ошибка обработки не роняет сессию: логируем и читаем дальше
			if err := handler.HandleFrame(c, &frame); err != nil {
				log.Printf("Error handling frame: %v", err)
			}
		}
	}
}

// WritePump отправляет события клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent кладет событие в очередь этого соединения
func (c *Client) SendEvent(ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if !c.enqueue(data) {
		return ErrClientQueueFull
	}
	return nil
}

// InGroup проверяет подписку соединения на группу
func (c *Client) InGroup(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groups[key]
}
