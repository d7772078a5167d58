package models

import (
	"github.com/google/uuid"
	"time"
)

// Типы звонков
const (
	CallTypeVoice = "voice"
	CallTypeVideo = "video"
)

// Статусы звонка. Переходы только вперед, к терминальному состоянию.
const (
	CallStatusRinging    = "ringing"
	CallStatusConnecting = "connecting"
	CallStatusConnected  = "connected"
	CallStatusEnded      = "ended"
	CallStatusRejected   = "rejected"
	CallStatusMissed     = "missed"
	CallStatusBusy       = "busy"
	CallStatusFailed     = "failed"
)

// ActiveCallStatuses — нетерминальные статусы звонка
var ActiveCallStatuses = []string{CallStatusRinging, CallStatusConnecting, CallStatusConnected}

type Call struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"not null;index"`
	CallerID  uuid.UUID `gorm:"not null;index:idx_calls_caller_status"`
	CalleeID  uuid.UUID `gorm:"not null;index:idx_calls_callee_status"`
	CallType  string    `gorm:"not null;default:'voice';check:call_type IN ('voice','video')"`
	Status    string    `gorm:"not null;default:'ringing';index:idx_calls_caller_status;index:idx_calls_callee_status"`
	Channel   string
	// Токен, выданный звонящему при создании. Пересылается ему же
	// в call_answer, когда собеседник принял звонок.
	Token     string
	StartedAt *time.Time
	EndedAt   *time.Time
	Duration  *int64
	CreatedAt time.Time

	// Связи
	Room   Room `gorm:"foreignKey:RoomID"`
	Caller User `gorm:"foreignKey:CallerID"`
	Callee User `gorm:"foreignKey:CalleeID"`
}

// IsTerminal сообщает, достиг ли звонок терминального статуса
func (c *Call) IsTerminal() bool {
	switch c.Status {
	case CallStatusEnded, CallStatusRejected, CallStatusMissed, CallStatusBusy, CallStatusFailed:
		return true
	}
	return false
}

// ValidEndReason проверяет причину завершения, переданную клиентом
func ValidEndReason(reason string) bool {
	switch reason {
	case CallStatusEnded, CallStatusFailed, CallStatusMissed, CallStatusBusy:
		return true
	}
	return false
}
