package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/database"
	"github.com/thereayou/crowdchat/internal/handlers/dto"
	"github.com/thereayou/crowdchat/internal/middleware"
	"github.com/thereayou/crowdchat/internal/models"
)

// RoomHandler обслуживает комнаты, сообщения и групповое управление
type RoomHandler struct {
	db       *database.Database
	svc      *ChatService
	presence *cache.PresenceStore
}

func NewRoomHandler(db *database.Database, svc *ChatService, presence *cache.PresenceStore) *RoomHandler {
	return &RoomHandler{db: db, svc: svc, presence: presence}
}

// ListRooms отдает комнаты пользователя с последним сообщением,
// счетчиком непрочитанного и присутствием собеседника
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	ctx := c.Request.Context()

	rooms, err := h.db.GetUserRooms(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	out := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		out = append(out, *h.buildRoomResponse(ctx, &rooms[i], userID))
	}
	c.JSON(http.StatusOK, out)
}

// GetRoom отдает одну комнату участнику
func (h *RoomHandler) GetRoom(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.buildRoomResponse(c.Request.Context(), room, userID))
}

// GetOrCreateDirectRoom находит или создает личную комнату с собеседником.
// Комната с самим собой запрещена.
func (h *RoomHandler) GetOrCreateDirectRoom(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req dto.GetOrCreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.OtherUserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot create a chat with yourself"})
		return
	}

	if _, err := h.db.GetUser(req.OtherUserID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	room, err := h.db.GetOrCreateDirectRoom(userID, req.OtherUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	c.JSON(http.StatusOK, h.buildRoomResponse(c.Request.Context(), room, userID))
}

// GetMessages отдает ленту комнаты по возрастанию времени.
// Открытие ленты означает прочтение; список кэшируется на 30 секунд.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	ctx := c.Request.Context()

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	hadUnread, err := h.svc.MarkRoomRead(ctx, room, userID)
	if err != nil {
		log.Printf("room: mark %s read: %v", room.ID, err)
	} else if hadUnread {
		h.svc.BroadcastReadReceipt(room.ID, userID)
		h.svc.MessageCache().Invalidate(ctx, room.ID)
	}

	if cached := h.svc.MessageCache().Get(ctx, room.ID); cached != nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	messages, err := h.db.GetRoomMessagesAsc(room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	body, err := json.Marshal(dto.NewMessageList(messages))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode messages"})
		return
	}

	h.svc.MessageCache().Put(ctx, room.ID, body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// SendMessage — отправка сообщения по HTTP
func (h *RoomHandler) SendMessage(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	user, err := h.db.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.svc.SendMessage(c.Request.Context(), room, user, &req)
	if err != nil {
		if IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, dto.NewMessageResponse(message))
}

// EditMessage правит текст сообщения
func (h *RoomHandler) EditMessage(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	var req dto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.svc.EditMessage(c.Request.Context(), room, userID, messageID, req.Body)
	if err != nil {
		h.writeMessageError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMessageResponse(message))
}

// DeleteMessage мягко удаляет сообщение
func (h *RoomHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	if _, err := h.svc.DeleteMessage(c.Request.Context(), room, userID, messageID); err != nil {
		h.writeMessageError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkRead помечает всю комнату прочитанной
func (h *RoomHandler) MarkRead(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	hadUnread, err := h.svc.MarkRoomRead(c.Request.Context(), room, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	if hadUnread {
		h.svc.BroadcastReadReceipt(room.ID, userID)
	}

	c.Status(http.StatusOK)
}

// CreateGroup создает групповую комнату, создатель становится owner
func (h *RoomHandler) CreateGroup(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := &models.Room{
		IsGroup:     true,
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatedBy:   userID,
		CreatedAt:   time.Now(),
	}
	if err := h.db.CreateRoom(room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	if err := h.db.AddUserToRoom(userID, room.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}
	owner := &models.Membership{
		RoomID:            room.ID,
		UserID:            userID,
		Role:              models.RoleOwner,
		CanDeleteMessages: true,
		CanKick:           true,
		CanInvite:         true,
		CanManageAdmins:   true,
		JoinedAt:          time.Now(),
	}
	if err := h.db.SaveMembership(owner); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	for _, memberID := range req.MemberIDs {
		if memberID == userID {
			continue
		}
		if _, err := h.db.GetUser(memberID); err != nil {
			continue
		}
		if err := h.db.AddUserToRoom(memberID, room.ID); err != nil {
			log.Printf("room: add member %s to group %s: %v", memberID, room.ID, err)
			continue
		}
		if _, err := h.db.GetOrCreateMembership(room.ID, memberID); err != nil {
			log.Printf("room: membership for %s in group %s: %v", memberID, room.ID, err)
		}
	}

	created, err := h.db.GetRoom(room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	c.JSON(http.StatusCreated, h.buildRoomResponse(c.Request.Context(), created, userID))
}

// SearchGroups ищет открытые группы по подстроке имени
func (h *RoomHandler) SearchGroups(c *gin.Context) {
	query := c.Query("q")

	rooms, err := h.db.SearchGroups(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	userID := middleware.CurrentUserID(c)
	ctx := c.Request.Context()
	out := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		out = append(out, *h.buildRoomResponse(ctx, &rooms[i], userID))
	}
	c.JSON(http.StatusOK, out)
}

// JoinGroup — вступление в открытую группу
func (h *RoomHandler) JoinGroup(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	if !room.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group"})
		return
	}
	if room.IsPrivate {
		c.JSON(http.StatusForbidden, gin.H{"error": "group is private"})
		return
	}
	if room.HasMember(userID) {
		c.Status(http.StatusOK)
		return
	}

	if err := h.db.AddUserToRoom(userID, room.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join group"})
		return
	}
	if _, err := h.db.GetOrCreateMembership(room.ID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join group"})
		return
	}

	h.systemAnnounce(c.Request.Context(), room, userID, "joined the group")
	c.Status(http.StatusOK)
}

// LeaveGroup — выход из группы. Owner не может выйти, пока группа жива.
func (h *RoomHandler) LeaveGroup(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}
	if !room.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group"})
		return
	}

	membership, err := h.db.GetMembership(room.ID, userID)
	if err == nil && membership.Role == models.RoleOwner {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner cannot leave the group"})
		return
	}

	if err := h.db.RemoveUserFromRoom(userID, room.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave group"})
		return
	}
	if err := h.db.DeleteMembership(room.ID, userID); err != nil {
		log.Printf("room: delete membership %s/%s: %v", room.ID, userID, err)
	}

	h.systemAnnounce(c.Request.Context(), room, userID, "left the group")
	c.Status(http.StatusOK)
}

// AddMember добавляет пользователя в группу (нужно право can_invite)
func (h *RoomHandler) AddMember(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}
	if !room.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group"})
		return
	}

	var req dto.TargetUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.db.GetMembership(room.ID, userID)
	if err != nil || (actor.Role != models.RoleOwner && !actor.CanInvite) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no permission to invite"})
		return
	}

	target, err := h.db.GetUser(req.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if room.HasMember(target.ID) {
		c.Status(http.StatusOK)
		return
	}

	if err := h.db.AddUserToRoom(target.ID, room.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add member"})
		return
	}
	if _, err := h.db.GetOrCreateMembership(room.ID, target.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add member"})
		return
	}

	h.systemAnnounce(c.Request.Context(), room, target.ID, "was added to the group")
	c.Status(http.StatusOK)
}

// KickMember убирает участника из группы (нужно право can_kick).
// Owner неприкосновенен.
func (h *RoomHandler) KickMember(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}
	if !room.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group"})
		return
	}

	var req dto.TargetUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.db.GetMembership(room.ID, userID)
	if err != nil || (actor.Role != models.RoleOwner && !actor.CanKick) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no permission to kick"})
		return
	}

	if target, err := h.db.GetMembership(room.ID, req.UserID); err == nil && target.Role == models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot kick the owner"})
		return
	}

	if err := h.db.RemoveUserFromRoom(req.UserID, room.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to kick member"})
		return
	}
	if err := h.db.DeleteMembership(room.ID, req.UserID); err != nil {
		log.Printf("room: delete membership %s/%s: %v", room.ID, req.UserID, err)
	}

	h.systemAnnounce(c.Request.Context(), room, req.UserID, "was removed from the group")
	c.Status(http.StatusOK)
}

// SetAdmin выдает или снимает делегированные права (только owner
// или участник с can_manage_admins)
func (h *RoomHandler) SetAdmin(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}
	if !room.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group"})
		return
	}

	var req dto.SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, err := h.db.GetMembership(room.ID, userID)
	if err != nil || (actor.Role != models.RoleOwner && !actor.CanManageAdmins) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no permission to manage admins"})
		return
	}

	target, err := h.db.GetMembership(room.ID, req.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	if target.Role == models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "owner role cannot be changed"})
		return
	}

	if req.RemoveAdmin {
		target.Role = models.RoleMember
		target.CanDeleteMessages = false
		target.CanKick = false
		target.CanInvite = false
		target.CanManageAdmins = false
	} else {
		target.Role = models.RoleAdmin
		if req.IsFullAdmin {
			target.CanDeleteMessages = true
			target.CanKick = true
			target.CanInvite = true
			target.CanManageAdmins = true
		} else {
			target.CanDeleteMessages = req.CanDeleteMessages
			target.CanKick = req.CanKick
			target.CanInvite = req.CanInvite
		}
	}

	if err := h.db.SaveMembership(target); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update member"})
		return
	}

	c.JSON(http.StatusOK, dto.NewMembershipInfo(target))
}

// ListMembers отдает участников группы с ролями
func (h *RoomHandler) ListMembers(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}
	if !room.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group"})
		return
	}

	memberships, err := h.db.ListMemberships(room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	out := make([]dto.MemberInfo, 0, len(memberships))
	for i := range memberships {
		m := &memberships[i]
		out = append(out, dto.MemberInfo{
			ID:                m.UserID,
			Username:          m.User.Username,
			AvatarURL:         m.User.AvatarURL,
			Role:              m.Role,
			CanDeleteMessages: m.CanDeleteMessages,
			CanKick:           m.CanKick,
			CanInvite:         m.CanInvite,
			CanManageAdmins:   m.CanManageAdmins,
		})
	}
	c.JSON(http.StatusOK, out)
}

// DeleteRoom удаляет комнату целиком. Группу удаляет только owner,
// личную комнату — любой из двоих.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	room, ok := h.loadRoomForMember(c, userID)
	if !ok {
		return
	}

	if room.IsGroup {
		membership, err := h.db.GetMembership(room.ID, userID)
		if err != nil || membership.Role != models.RoleOwner {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can delete the group"})
			return
		}
	}

	if err := h.db.DeleteRoom(room.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete room"})
		return
	}
	h.svc.MessageCache().Invalidate(c.Request.Context(), room.ID)

	c.Status(http.StatusNoContent)
}

// loadRoom достает комнату из пути без проверки участия
func (h *RoomHandler) loadRoom(c *gin.Context) (*models.Room, bool) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return nil, false
	}
	room, err := h.db.GetRoom(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return nil, false
	}
	return room, true
}

// loadRoomForMember достает комнату и проверяет участие
func (h *RoomHandler) loadRoomForMember(c *gin.Context, userID uuid.UUID) (*models.Room, bool) {
	room, ok := h.loadRoom(c)
	if !ok {
		return nil, false
	}
	if !room.HasMember(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return nil, false
	}
	return room, true
}

func (h *RoomHandler) writeMessageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, ErrNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// systemAnnounce пишет служебное сообщение от имени пользователя
func (h *RoomHandler) systemAnnounce(ctx context.Context, room *models.Room, actorID uuid.UUID, text string) {
	actor, err := h.db.GetUser(actorID)
	if err != nil {
		return
	}
	h.svc.CreateSystemMessage(ctx, room, actor, actor.Username+" "+text, models.MessageKindSystem)
}

// buildRoomResponse собирает представление комнаты для конкретного зрителя
func (h *RoomHandler) buildRoomResponse(ctx context.Context, room *models.Room, viewerID uuid.UUID) *dto.RoomResponse {
	resp := &dto.RoomResponse{
		ID:          room.ID,
		IsGroup:     room.IsGroup,
		Name:        room.Name,
		Description: room.Description,
		IsPrivate:   room.IsPrivate,
		AvatarURL:   room.AvatarURL,
		CreatedBy:   room.CreatedBy,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
		MemberCount: len(room.Members),
	}

	if last, err := h.db.LastMessage(room.ID); err == nil && last != nil {
		body := last.Body
		if last.IsDeleted {
			body = "Message deleted"
		} else if body == "" && last.HasMedia() {
			body = "Attachment"
		}
		resp.LastMessage = &dto.LastMessagePreview{
			Body:      body,
			Sender:    last.Sender.Username,
			CreatedAt: last.CreatedAt,
		}
	}

	if !room.HasMember(viewerID) {
		return resp
	}

	if count, err := h.svc.UnreadCount(ctx, room, viewerID); err == nil {
		resp.UnreadCount = count
	}

	if room.IsGroup {
		if membership, err := h.db.GetMembership(room.ID, viewerID); err == nil {
			resp.Membership = dto.NewMembershipInfo(membership)
		}
		return resp
	}

	if other := room.OtherMember(viewerID); other != nil {
		resp.OtherUser = &dto.OtherUserInfo{
			ID:        other.ID,
			Username:  other.Username,
			AvatarURL: other.AvatarURL,
			IsOnline:  h.presence.IsOnline(ctx, other.ID),
			LastSeen:  h.presence.LastSeen(ctx, other.ID),
		}
	}
	return resp
}
