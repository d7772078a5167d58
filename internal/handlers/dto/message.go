package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/models"
)

// SendMessageRequest — входящее сообщение по HTTP.
// Медиа передается ссылками: хранение файлов живет во внешнем сервисе.
type SendMessageRequest struct {
	Body          string     `json:"body"`
	ReplyTo       *uuid.UUID `json:"reply_to"`
	ImageURL      string     `json:"image_url"`
	AudioURL      string     `json:"audio_url"`
	AudioDuration *float64   `json:"audio_duration"`
	AudioSize     *int64     `json:"audio_size"`
	FileURL       string     `json:"file_url"`
	FileName      string     `json:"file_name"`
	FileSize      *int64     `json:"file_size"`
}

type EditMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// ReplyPreview — краткая выжимка цитируемого сообщения
type ReplyPreview struct {
	ID             uuid.UUID `json:"id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Body           string    `json:"body"`
	IsDeleted      bool      `json:"is_deleted"`
}

// MessageResponse — полное представление сообщения на проводе
type MessageResponse struct {
	ID             uuid.UUID     `json:"id"`
	Room           uuid.UUID     `json:"room"`
	Sender         uuid.UUID     `json:"sender"`
	SenderUsername string        `json:"sender_username"`
	SenderID       uuid.UUID     `json:"sender_id"`
	ReplyTo        *uuid.UUID    `json:"reply_to"`
	ReplyToPreview *ReplyPreview `json:"reply_to_preview"`
	Body           string        `json:"body"`
	ImageURL       *string       `json:"image_url"`
	AudioURL       *string       `json:"audio_url"`
	AudioDuration  *float64      `json:"audio_duration,omitempty"`
	AudioSize      *int64        `json:"audio_size,omitempty"`
	FileURL        *string       `json:"file_url,omitempty"`
	FileName       string        `json:"file_name,omitempty"`
	FileSize       *int64        `json:"file_size,omitempty"`
	Kind           string        `json:"kind"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	IsRead         bool          `json:"is_read"`
	IsDeleted      bool          `json:"is_deleted"`
	IsEdited       bool          `json:"is_edited"`
}

// NewMessageResponse собирает представление сообщения.
// Удаленное сообщение сохраняет id и отметки времени ради порядка,
// но не раскрывает текст и вложения.
func NewMessageResponse(m *models.Message) MessageResponse {
	resp := MessageResponse{
		ID:             m.ID,
		Room:           m.RoomID,
		Sender:         m.SenderID,
		SenderUsername: m.Sender.Username,
		SenderID:       m.SenderID,
		ReplyTo:        m.ReplyToID,
		Kind:           m.Kind,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		IsRead:         m.IsRead,
		IsDeleted:      m.IsDeleted,
		IsEdited:       m.IsEdited,
	}

	if m.IsDeleted {
		return resp
	}

	resp.Body = m.Body
	if m.ImageURL != "" {
		resp.ImageURL = strPtr(m.ImageURL)
	}
	if m.AudioURL != "" {
		resp.AudioURL = strPtr(m.AudioURL)
		resp.AudioDuration = m.AudioDuration
		resp.AudioSize = m.AudioSize
	}
	if m.FileURL != "" {
		resp.FileURL = strPtr(m.FileURL)
		resp.FileName = m.FileName
		resp.FileSize = m.FileSize
	}

	if m.ReplyTo != nil {
		preview := &ReplyPreview{
			ID:             m.ReplyTo.ID,
			SenderID:       m.ReplyTo.SenderID,
			SenderUsername: m.ReplyTo.Sender.Username,
			IsDeleted:      m.ReplyTo.IsDeleted,
		}
		if !m.ReplyTo.IsDeleted {
			preview.Body = m.ReplyTo.Body
		}
		resp.ReplyToPreview = preview
	}

	return resp
}

// NewMessageList собирает ленту комнаты
func NewMessageList(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, len(messages))
	for i := range messages {
		out[i] = NewMessageResponse(&messages[i])
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
