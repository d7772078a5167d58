package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/handlers/dto"
	"github.com/thereayou/crowdchat/internal/models"
	ws "github.com/thereayou/crowdchat/internal/websocket"
)

// RoomSession — состояние одного WebSocket-подключения к комнате.
// Обрабатывает входящие кадры и фильтрует исходящие события.
type RoomSession struct {
	svc      *ChatService
	presence *cache.PresenceStore
	room     *models.Room
	user     *models.User
}

func NewRoomSession(svc *ChatService, presence *cache.PresenceStore, room *models.Room, user *models.User) *RoomSession {
	return &RoomSession{svc: svc, presence: presence, room: room, user: user}
}

// HandleFrame разбирает входящий кадр. Ошибки валидации молча
// отбрасываются: сессия продолжает жить.
func (s *RoomSession) HandleFrame(client *ws.Client, frame *ws.Frame) error {
	ctx := context.Background()

	// Любая активность клиента продлевает присутствие
	s.presence.SetOnline(ctx, s.user.ID)

	switch frame.Type {
	case ws.TypeMessage:
		req := &dto.SendMessageRequest{Body: frame.Body, ReplyTo: frame.ReplyTo}
		if _, err := s.svc.SendMessage(ctx, s.room, s.user, req); err != nil {
			if IsValidationError(err) {
				return nil
			}
			// Инфраструктурный сбой: сообщаем клиенту, если получится,
			// и продолжаем читать
			if ev, evErr := ws.NewEvent(ws.TypeError, &s.room.ID, s.user.ID, map[string]string{
				"error": "failed to send message",
			}); evErr == nil {
				_ = client.SendEvent(ev)
			}
			return err
		}

	case ws.TypeTyping:
		payload := map[string]interface{}{
			"user_id":  s.user.ID,
			"username": s.user.Username,
		}
		ev, err := ws.NewEvent(ws.TypeTyping, &s.room.ID, s.user.ID, payload)
		if err != nil {
			return err
		}
		s.svc.Hub().Broadcast(ws.RoomGroup(s.room.ID), ev)

	case ws.TypeMarkRead:
		if _, err := s.svc.MarkRoomRead(ctx, s.room, s.user.ID); err != nil {
			return err
		}
		s.svc.BroadcastReadReceipt(s.room.ID, s.user.ID)

	case ws.TypePing:
		pong, err := ws.NewEvent(ws.TypePong, nil, s.user.ID, nil)
		if err != nil {
			return err
		}
		return client.SendEvent(pong)

	default:
		// неизвестный тип кадра игнорируем
	}
	return nil
}

// HandleDelivery решает, отдавать ли событие этому подключению.
// Собственный typing не возвращается отправителю; чужое сообщение,
// доставленное в живую сессию, сразу считается прочитанным.
func (s *RoomSession) HandleDelivery(client *ws.Client, ev *ws.Event) bool {
	switch ev.Type {
	case ws.TypeTyping:
		if ev.UserID == s.user.ID {
			return false
		}
	case ws.TypeMessage:
		if ev.UserID != s.user.ID {
			go s.markDelivered(ev)
		}
	}
	return true
}

func (s *RoomSession) markDelivered(ev *ws.Event) {
	var payload struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.ID == uuid.Nil {
		return
	}
	if err := s.svc.MarkOneRead(context.Background(), s.room, s.user.ID, payload.ID); err != nil {
		log.Printf("ws: mark delivered message %s: %v", payload.ID, err)
	}
}
