package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/database"
	"github.com/thereayou/crowdchat/internal/middleware"
	ws "github.com/thereayou/crowdchat/internal/websocket"
)

// WebSocketHandler поднимает соединения реального времени
type WebSocketHandler struct {
	db       *database.Database
	hub      *ws.Hub
	svc      *ChatService
	presence *cache.PresenceStore
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(db *database.Database, hub *ws.Hub, svc *ChatService, presence *cache.PresenceStore) *WebSocketHandler {
	return &WebSocketHandler{
		db:       db,
		hub:      hub,
		svc:      svc,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleChat — подключение к комнате: /ws/chat/:id.
// Участие проверяется до апгрейда, чужим соединение не поднимаем.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	user, err := h.db.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	room, err := h.db.GetRoom(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if !room.HasMember(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a room participant"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	ctx := context.Background()
	client := ws.NewClient(h.hub, conn, userID, user.Username)
	session := NewRoomSession(h.svc, h.presence, room, user)
	client.SetDeliveryHandler(session)

	h.hub.Register(client)
	h.hub.JoinGroup(client, ws.RoomGroup(room.ID))
	h.presence.SetOnline(ctx, userID)

	// Вход в комнату означает прочтение всего накопленного
	hadUnread, err := h.svc.MarkRoomRead(ctx, room, userID)
	if err != nil {
		log.Printf("ws: mark room %s read on join: %v", room.ID, err)
	} else if hadUnread {
		h.svc.BroadcastReadReceipt(room.ID, userID)
	}

	go client.WritePump()
	go func() {
		client.ReadPump(session)
		h.presence.SetOffline(context.Background(), userID)
	}()
}

// HandleUser — личный канал пользователя: /ws/user.
// Сюда приходят звонки и события устройств; входящие кадры не обрабатываются.
func (h *WebSocketHandler) HandleUser(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.db.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, userID, user.Username)
	h.hub.Register(client)
	h.hub.JoinGroup(client, ws.UserGroup(userID))
	h.presence.SetOnline(context.Background(), userID)

	go client.WritePump()
	go client.ReadPump(nil)
}
