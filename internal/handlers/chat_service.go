package handlers

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/database"
	"github.com/thereayou/crowdchat/internal/handlers/dto"
	"github.com/thereayou/crowdchat/internal/models"
	"github.com/thereayou/crowdchat/internal/notify"
	ws "github.com/thereayou/crowdchat/internal/websocket"
)

// Ошибки валидации и прав. На HTTP-пути превращаются в 400/403,
// на WebSocket-пути кадр молча отбрасывается.
var (
	ErrEmptyMessage        = errors.New("message body, image, audio, or file is required")
	ErrMessageTooLong      = errors.New("message too long (max 2000 characters)")
	ErrReplyNotFound       = errors.New("reply message not found")
	ErrNestedReply         = errors.New("cannot reply to a reply")
	ErrFileTypeNotAllowed  = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file too large (max 50MB)")
	ErrImageTypeNotAllowed = errors.New("image type not allowed")
	ErrAudioTypeNotAllowed = errors.New("audio type not allowed")
	ErrEditDeleted         = errors.New("cannot edit a deleted message")
	ErrNotAllowed          = errors.New("not allowed to modify this message")
)

// maxFileSize — предел размера файлового вложения
const maxFileSize = 50 * 1024 * 1024

var allowedFileExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".txt": true, ".zip": true, ".rar": true,
}

var allowedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var allowedAudioExtensions = map[string]bool{
	".m4a": true, ".mp3": true, ".ogg": true, ".wav": true, ".aac": true,
}

// mediaExt — расширение из URL вложения без query-части
func mediaExt(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return strings.ToLower(filepath.Ext(rawURL))
}

// IsValidationError сообщает, что ошибка вызвана содержимым сообщения,
// а не инфраструктурой
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrMessageTooLong),
		errors.Is(err, ErrReplyNotFound),
		errors.Is(err, ErrNestedReply),
		errors.Is(err, ErrFileTypeNotAllowed),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrImageTypeNotAllowed),
		errors.Is(err, ErrAudioTypeNotAllowed),
		errors.Is(err, ErrEditDeleted):
		return true
	}
	return false
}

// ChatService — общий конвейер сообщений для HTTP и WebSocket:
// запись в БД, инвалидация кэшей, счетчики, рассылка, push.
// Запись в БД всегда завершается до рассылки события.
type ChatService struct {
	db     *database.Database
	hub    *ws.Hub
	unread *cache.UnreadCounters
	msgs   *cache.RoomMessages
	push   *notify.PushSender
}

func NewChatService(db *database.Database, hub *ws.Hub, unread *cache.UnreadCounters, msgs *cache.RoomMessages, push *notify.PushSender) *ChatService {
	return &ChatService{db: db, hub: hub, unread: unread, msgs: msgs, push: push}
}

func (s *ChatService) MessageCache() *cache.RoomMessages { return s.msgs }
func (s *ChatService) Hub() *ws.Hub                      { return s.hub }

// ValidateMessageInput проверяет содержимое нового сообщения
func (s *ChatService) ValidateMessageInput(room *models.Room, req *dto.SendMessageRequest) (string, *models.Message, error) {
	body := strings.TrimSpace(req.Body)
	hasMedia := req.ImageURL != "" || req.AudioURL != "" || req.FileURL != ""

	if body == "" && !hasMedia {
		return "", nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > models.MaxMessageBody {
		return "", nil, ErrMessageTooLong
	}

	if req.ImageURL != "" && !allowedImageExtensions[mediaExt(req.ImageURL)] {
		return "", nil, ErrImageTypeNotAllowed
	}
	if req.AudioURL != "" && !allowedAudioExtensions[mediaExt(req.AudioURL)] {
		return "", nil, ErrAudioTypeNotAllowed
	}

	if req.FileURL != "" {
		ext := strings.ToLower(filepath.Ext(req.FileName))
		if !allowedFileExtensions[ext] {
			return "", nil, ErrFileTypeNotAllowed
		}
		if req.FileSize != nil && *req.FileSize > maxFileSize {
			return "", nil, ErrFileTooLarge
		}
	}

	// Ответ допускается только на сообщение верхнего уровня
	var replyTo *models.Message
	if req.ReplyTo != nil {
		target, err := s.db.GetRoomMessage(room.ID, *req.ReplyTo)
		if err != nil {
			return "", nil, ErrReplyNotFound
		}
		if target.ReplyToID != nil {
			return "", nil, ErrNestedReply
		}
		replyTo = target
	}

	return body, replyTo, nil
}

// SendMessage проводит новое сообщение через весь конвейер
func (s *ChatService) SendMessage(ctx context.Context, room *models.Room, sender *models.User, req *dto.SendMessageRequest) (*models.Message, error) {
	body, replyTo, err := s.ValidateMessageInput(room, req)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		RoomID:        room.ID,
		SenderID:      sender.ID,
		Body:          body,
		Kind:          models.MessageKindNormal,
		ImageURL:      req.ImageURL,
		AudioURL:      req.AudioURL,
		AudioDuration: req.AudioDuration,
		AudioSize:     req.AudioSize,
		FileURL:       req.FileURL,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		CreatedAt:     time.Now(),
	}
	if replyTo != nil {
		message.ReplyToID = &replyTo.ID
	}

	if err := s.db.SaveMessage(message); err != nil {
		return nil, err
	}
	message.Sender = *sender
	message.ReplyTo = replyTo

	if err := s.db.TouchRoom(room.ID); err != nil {
		log.Printf("chat: touch room %s: %v", room.ID, err)
	}

	// Инвалидация до рассылки, чтобы не раздать устаревший список
	s.msgs.Invalidate(ctx, room.ID)

	if !room.IsGroup {
		ids := make([]uuid.UUID, 0, len(room.Members))
		for _, m := range room.Members {
			ids = append(ids, m.ID)
		}
		s.unread.Bump(ctx, room.ID, ids, sender.ID)
	}

	s.broadcastMessageEvent(ws.TypeMessage, room.ID, sender.ID, message)
	s.notifyParticipants(room, sender, message)

	return message, nil
}

// EditMessage редактирует текст с проверкой прав и рассылает обновление
func (s *ChatService) EditMessage(ctx context.Context, room *models.Room, actorID uuid.UUID, messageID uuid.UUID, body string) (*models.Message, error) {
	message, err := s.db.GetRoomMessage(room.ID, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.checkModifyPermission(room, message, actorID); err != nil {
		return nil, err
	}

	if message.IsDeleted {
		return nil, ErrEditDeleted
	}

	body = strings.TrimSpace(body)
	if body == "" && !message.HasMedia() {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > models.MaxMessageBody {
		return nil, ErrMessageTooLong
	}

	message.Body = body
	message.IsEdited = true
	if err := s.db.UpdateMessage(message); err != nil {
		return nil, err
	}

	s.msgs.Invalidate(ctx, room.ID)
	s.broadcastMessageEvent(ws.TypeMessageUpdated, room.ID, actorID, message)

	return message, nil
}

// DeleteMessage мягко удаляет сообщение и рассылает событие
func (s *ChatService) DeleteMessage(ctx context.Context, room *models.Room, actorID uuid.UUID, messageID uuid.UUID) (*models.Message, error) {
	message, err := s.db.GetRoomMessage(room.ID, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.checkModifyPermission(room, message, actorID); err != nil {
		return nil, err
	}

	if err := s.db.SoftDeleteMessage(message); err != nil {
		return nil, err
	}

	s.msgs.Invalidate(ctx, room.ID)
	s.broadcastMessageEvent(ws.TypeMessageDeleted, room.ID, actorID, message)

	return message, nil
}

// checkModifyPermission: автор всегда может; в группе — owner или
// участник с делегированным правом удаления
func (s *ChatService) checkModifyPermission(room *models.Room, message *models.Message, actorID uuid.UUID) error {
	if message.SenderID == actorID {
		return nil
	}
	if !room.IsGroup {
		return ErrNotAllowed
	}
	membership, err := s.db.GetMembership(room.ID, actorID)
	if err != nil {
		return ErrNotAllowed
	}
	if membership.Role == models.RoleOwner || membership.CanDeleteMessages {
		return nil
	}
	return ErrNotAllowed
}

// MarkRoomRead реализует контракт "вход в комнату означает прочтение".
// Возвращает true, если что-то действительно стало прочитанным.
func (s *ChatService) MarkRoomRead(ctx context.Context, room *models.Room, userID uuid.UUID) (bool, error) {
	if room.IsGroup {
		return false, s.db.BumpWatermark(room.ID, userID)
	}

	affected, err := s.db.MarkRoomMessagesRead(room.ID, userID)
	if err != nil {
		return false, err
	}
	s.unread.Reset(ctx, room.ID, userID)
	return affected > 0, nil
}

// MarkOneRead помечает одно сообщение при его доставке в живую сессию
func (s *ChatService) MarkOneRead(ctx context.Context, room *models.Room, userID, messageID uuid.UUID) error {
	if room.IsGroup {
		return s.db.BumpWatermark(room.ID, userID)
	}

	affected, err := s.db.MarkMessageRead(messageID, userID)
	if err != nil {
		return err
	}
	if affected > 0 {
		s.unread.DecrementOneRead(ctx, room.ID, userID, s.UnreadRecompute(room.ID, userID))
	}
	return nil
}

// UnreadRecompute — авторитетный пересчет счетчика из БД
func (s *ChatService) UnreadRecompute(roomID, userID uuid.UUID) cache.RecomputeFunc {
	return func() (int64, error) {
		return s.db.CountUnread(roomID, userID)
	}
}

// UnreadCount возвращает счетчик непрочитанного для комнаты
func (s *ChatService) UnreadCount(ctx context.Context, room *models.Room, userID uuid.UUID) (int64, error) {
	if room.IsGroup {
		return s.db.CountUnreadByWatermark(room.ID, userID)
	}
	return s.unread.Get(ctx, room.ID, userID, s.UnreadRecompute(room.ID, userID))
}

// BroadcastReadReceipt рассылает расписку о прочтении по комнате
func (s *ChatService) BroadcastReadReceipt(roomID, readerID uuid.UUID) {
	payload := map[string]interface{}{
		"room_id":   roomID,
		"reader_id": readerID,
	}
	ev, err := ws.NewEvent(ws.TypeReadReceipt, &roomID, readerID, payload)
	if err != nil {
		log.Printf("chat: build read receipt: %v", err)
		return
	}
	s.hub.Broadcast(ws.RoomGroup(roomID), ev)
}

// CreateSystemMessage пишет служебное сообщение в ленту комнаты
func (s *ChatService) CreateSystemMessage(ctx context.Context, room *models.Room, sender *models.User, body, kind string) {
	message := &models.Message{
		RoomID:    room.ID,
		SenderID:  sender.ID,
		Body:      body,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	if err := s.db.SaveMessage(message); err != nil {
		log.Printf("chat: save system message: %v", err)
		return
	}
	s.msgs.Invalidate(ctx, room.ID)
}

func (s *ChatService) broadcastMessageEvent(t ws.EventType, roomID, actorID uuid.UUID, message *models.Message) {
	ev, err := ws.NewEvent(t, &roomID, actorID, dto.NewMessageResponse(message))
	if err != nil {
		log.Printf("chat: build %s event: %v", t, err)
		return
	}
	s.hub.Broadcast(ws.RoomGroup(roomID), ev)
}

// notifyParticipants шлет push тем участникам, у кого нет живой
// сессии в этой комнате
func (s *ChatService) notifyParticipants(room *models.Room, sender *models.User, message *models.Message) {
	preview := notify.MessagePreview(message)
	group := ws.RoomGroup(room.ID)

	for i := range room.Members {
		member := &room.Members[i]
		if member.ID == sender.ID {
			continue
		}
		if s.hub.UserHasSession(group, member.ID) {
			continue
		}

		title := sender.Username
		body := preview
		if room.IsGroup {
			title = room.Name
			body = sender.Username + ": " + preview
		}
		s.push.Notify(member, title, body, map[string]interface{}{
			"roomId":  room.ID.String(),
			"isGroup": room.IsGroup,
		})
	}
}
