package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
)

type GetOrCreateRoomRequest struct {
	OtherUserID uuid.UUID `json:"other_user_id" binding:"required"`
}

type CreateGroupRequest struct {
	Name        string      `json:"name" binding:"required,max=120"`
	Description string      `json:"description"`
	IsPrivate   bool        `json:"is_private"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type TargetUserRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type SetAdminRequest struct {
	UserID            uuid.UUID `json:"user_id" binding:"required"`
	RemoveAdmin       bool      `json:"remove_admin"`
	IsFullAdmin       bool      `json:"is_full_admin"`
	CanDeleteMessages bool      `json:"can_delete_messages"`
	CanKick           bool      `json:"can_kick"`
	CanInvite         bool      `json:"can_invite"`
}

type LastMessagePreview struct {
	Body      string    `json:"body"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}

type OtherUserInfo struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen"`
}

type MembershipInfo struct {
	Role              string `json:"role"`
	CanDeleteMessages bool   `json:"can_delete_messages"`
	CanKick           bool   `json:"can_kick"`
	CanInvite         bool   `json:"can_invite"`
	CanManageAdmins   bool   `json:"can_manage_admins"`
}

type MemberInfo struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	AvatarURL         string    `json:"avatar_url,omitempty"`
	Role              string    `json:"role"`
	CanDeleteMessages bool      `json:"can_delete_messages"`
	CanKick           bool      `json:"can_kick"`
	CanInvite         bool      `json:"can_invite"`
	CanManageAdmins   bool      `json:"can_manage_admins"`
}

type RoomResponse struct {
	ID          uuid.UUID           `json:"id"`
	IsGroup     bool                `json:"is_group"`
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	IsPrivate   bool                `json:"is_private"`
	AvatarURL   string              `json:"avatar_url,omitempty"`
	CreatedBy   uuid.UUID           `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	LastMessage *LastMessagePreview `json:"last_message"`
	OtherUser   *OtherUserInfo      `json:"other_user"`
	UnreadCount int64               `json:"unread_count"`
	Membership  *MembershipInfo     `json:"membership"`
	MemberCount int                 `json:"member_count"`
}

// NewMembershipInfo переводит членство в представление на проводе
func NewMembershipInfo(m *models.Membership) *MembershipInfo {
	if m == nil {
		return nil
	}
	return &MembershipInfo{
		Role:              m.Role,
		CanDeleteMessages: m.CanDeleteMessages,
		CanKick:           m.CanKick,
		CanInvite:         m.CanInvite,
		CanManageAdmins:   m.CanManageAdmins,
	}
}
