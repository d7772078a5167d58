package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
)

type StartCallRequest struct {
	RoomID   uuid.UUID `json:"room_id" binding:"required"`
	CalleeID uuid.UUID `json:"callee_id" binding:"required"`
	CallType string    `json:"call_type" binding:"required,oneof=voice video"`
}

type EndCallRequest struct {
	Reason string `json:"reason"`
}

type CallParticipant struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

type CallResponse struct {
	ID        uuid.UUID       `json:"id"`
	RoomID    uuid.UUID       `json:"room_id"`
	Caller    CallParticipant `json:"caller"`
	Callee    CallParticipant `json:"callee"`
	CallType  string          `json:"call_type"`
	Status    string          `json:"status"`
	Channel   string          `json:"channel"`
	Token     string          `json:"token,omitempty"`
	StartedAt *time.Time      `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at"`
	Duration  *int64          `json:"duration"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewCallResponse собирает представление звонка. Токен подставляется
// отдельно: он выпускается на конкретного получателя.
func NewCallResponse(c *models.Call) CallResponse {
	return CallResponse{
		ID:     c.ID,
		RoomID: c.RoomID,
		Caller: CallParticipant{
			ID:        c.CallerID,
			Username:  c.Caller.Username,
			AvatarURL: c.Caller.AvatarURL,
		},
		Callee: CallParticipant{
			ID:        c.CalleeID,
			Username:  c.Callee.Username,
			AvatarURL: c.Callee.AvatarURL,
		},
		CallType:  c.CallType,
		Status:    c.Status,
		Channel:   c.Channel,
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
		Duration:  c.Duration,
		CreatedAt: c.CreatedAt,
	}
}

// CallSignal — полезная нагрузка события call_signal
type CallSignal struct {
	Type           string     `json:"type"`
	CallID         uuid.UUID  `json:"call_id"`
	RoomID         uuid.UUID  `json:"room_id"`
	CallerID       uuid.UUID  `json:"caller_id"`
	CallerUsername string     `json:"caller_username,omitempty"`
	CallerAvatar   string     `json:"caller_avatar,omitempty"`
	CalleeID       uuid.UUID  `json:"callee_id"`
	CallType       string     `json:"call_type,omitempty"`
	Channel        string     `json:"channel,omitempty"`
	Token          string     `json:"token,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Duration       *int64     `json:"duration,omitempty"`
}
