package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thereayou/crowdchat/internal/database"
	"github.com/thereayou/crowdchat/internal/handlers/dto"
	"github.com/thereayou/crowdchat/internal/middleware"
	"github.com/thereayou/crowdchat/internal/models"
	"github.com/thereayou/crowdchat/internal/notify"
	ws "github.com/thereayou/crowdchat/internal/websocket"
	"github.com/thereayou/crowdchat/pkg/rtctoken"
)

// CallHandler — сигналинг звонков один-на-один.
// Сервер хранит состояние и гоняет события, медиапоток идет мимо него.
type CallHandler struct {
	db     *database.Database
	svc    *ChatService
	tokens *rtctoken.Builder
	push   *notify.PushSender
}

func NewCallHandler(db *database.Database, svc *ChatService, tokens *rtctoken.Builder, push *notify.PushSender) *CallHandler {
	return &CallHandler{db: db, svc: svc, tokens: tokens, push: push}
}

// StartCall начинает звонок. Висящие звонки в комнате принудительно
// завершаются: последняя попытка всегда выигрывает.
func (h *CallHandler) StartCall(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req dto.StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.CalleeID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot call yourself"})
		return
	}

	room, err := h.db.GetRoom(req.RoomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if room.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "calls are only available in direct rooms"})
		return
	}
	if !room.HasMember(userID) || !room.HasMember(req.CalleeID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return
	}

	caller, err := h.db.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	callee, err := h.db.GetUser(req.CalleeID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if err := h.db.ForceEndActiveCalls(room.ID); err != nil {
		log.Printf("call: force end active calls in %s: %v", room.ID, err)
	}

	channel := callChannel(room.ID)
	call := &models.Call{
		RoomID:    room.ID,
		CallerID:  caller.ID,
		CalleeID:  callee.ID,
		CallType:  req.CallType,
		Status:    models.CallStatusRinging,
		Channel:   channel,
		Token:     h.tokens.Build(channel, caller.ID),
		CreatedAt: time.Now(),
	}
	if err := h.db.CreateCall(call); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create call"})
		return
	}
	call.Caller = *caller
	call.Callee = *callee

	// Служебная запись о звонке в ленте комнаты
	h.svc.CreateSystemMessage(c.Request.Context(), room, caller,
		fmt.Sprintf("%s call", call.CallType), models.MessageKindCall)

	// call_offer уходит на личный канал вызываемого. Токена в нем нет:
	// вызываемый получит свой при ответе.
	h.broadcastSignal(ws.UserGroup(callee.ID), call, dto.CallSignal{
		Type:           "call_offer",
		CallID:         call.ID,
		RoomID:         call.RoomID,
		CallerID:       caller.ID,
		CallerUsername: caller.Username,
		CallerAvatar:   caller.AvatarURL,
		CalleeID:       callee.ID,
		CallType:       call.CallType,
		Channel:        call.Channel,
	})

	h.push.Notify(callee, caller.Username, "Incoming "+call.CallType+" call", map[string]interface{}{
		"type":   "call_offer",
		"callId": call.ID.String(),
		"roomId": call.RoomID.String(),
	})

	resp := dto.NewCallResponse(call)
	resp.Token = call.Token
	c.JSON(http.StatusCreated, resp)
}

// AnswerCall принимает звонок. Идемпотентен: повторный ответ на уже
// соединенный звонок просто возвращает его состояние.
func (h *CallHandler) AnswerCall(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	if call.CalleeID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the callee can answer"})
		return
	}
	if call.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "call already ended"})
		return
	}

	if call.Status == models.CallStatusRinging {
		now := time.Now()
		call.Status = models.CallStatusConnecting
		call.StartedAt = &now
		if err := h.db.UpdateCallStatus(call); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer call"})
			return
		}
	}

	// Звонящий получает свой исходный токен обратно в call_answer.
	// Сигнал уходит и на повторном ответе: если первый потерялся,
	// звонящий сможет восстановиться
	h.broadcastSignal(ws.UserGroup(call.CallerID), call, dto.CallSignal{
		Type:     "call_answer",
		CallID:   call.ID,
		RoomID:   call.RoomID,
		CallerID: call.CallerID,
		CalleeID: call.CalleeID,
		Channel:  call.Channel,
		Token:    call.Token,
	})

	// Свежий токен на вызываемого, не из записи звонка
	resp := dto.NewCallResponse(call)
	resp.Token = h.tokens.Build(call.Channel, userID)
	c.JSON(http.StatusOK, resp)
}

// RejectCall отклоняет входящий звонок. Повторное отклонение
// завершенного звонка не ошибка.
func (h *CallHandler) RejectCall(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	if call.CalleeID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the callee can reject"})
		return
	}

	// Отклонить можно только пока звонок еще не принят
	if call.Status == models.CallStatusRinging {
		now := time.Now()
		call.Status = models.CallStatusRejected
		call.EndedAt = &now
		if err := h.db.UpdateCallStatus(call); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reject call"})
			return
		}

		h.broadcastSignal(ws.UserGroup(call.CallerID), call, dto.CallSignal{
			Type:     "call_reject",
			CallID:   call.ID,
			RoomID:   call.RoomID,
			CallerID: call.CallerID,
			CalleeID: call.CalleeID,
		})
	}

	c.JSON(http.StatusOK, dto.NewCallResponse(call))
}

// EndCall завершает звонок любым из участников
func (h *CallHandler) EndCall(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	if call.CallerID != userID && call.CalleeID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a call participant"})
		return
	}

	var req dto.EndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = models.CallStatusEnded
	}
	if !models.ValidEndReason(reason) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end reason"})
		return
	}

	if !call.IsTerminal() {
		now := time.Now()
		call.Status = reason
		call.EndedAt = &now
		if call.StartedAt != nil {
			d := int64(now.Sub(*call.StartedAt).Seconds())
			call.Duration = &d
		}
		if err := h.db.UpdateCallStatus(call); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end call"})
			return
		}

		// Второй участник узнает о завершении на своем личном канале
		otherID := call.CallerID
		if userID == call.CallerID {
			otherID = call.CalleeID
		}
		h.broadcastSignal(ws.UserGroup(otherID), call, dto.CallSignal{
			Type:     "call_end",
			CallID:   call.ID,
			RoomID:   call.RoomID,
			CallerID: call.CallerID,
			CalleeID: call.CalleeID,
			Reason:   reason,
			Duration: call.Duration,
		})
	}

	c.JSON(http.StatusOK, dto.NewCallResponse(call))
}

// ActiveCall возвращает незавершенный звонок пользователя со свежим
// токеном на него
func (h *CallHandler) ActiveCall(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	call, err := h.db.ActiveCallForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"active": false})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load call"})
		return
	}

	resp := dto.NewCallResponse(call)
	resp.Token = h.tokens.Build(call.Channel, userID)
	c.JSON(http.StatusOK, gin.H{"active": true, "call": resp})
}

// CallHistory — последние звонки пользователя
func (h *CallHandler) CallHistory(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	calls, err := h.db.ListCallHistory(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	out := make([]dto.CallResponse, 0, len(calls))
	for i := range calls {
		out = append(out, dto.NewCallResponse(&calls[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *CallHandler) loadCall(c *gin.Context) (*models.Call, bool) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call ID"})
		return nil, false
	}
	call, err := h.db.GetCall(callID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return nil, false
	}
	return call, true
}

func (h *CallHandler) broadcastSignal(group string, call *models.Call, signal dto.CallSignal) {
	ev, err := ws.NewEvent(ws.TypeCallSignal, &call.RoomID, call.CallerID, signal)
	if err != nil {
		log.Printf("call: build %s event: %v", signal.Type, err)
		return
	}
	h.svc.Hub().Broadcast(group, ev)
}

// callChannel — имя медиаканала: call_<room>_<8 случайных hex>
func callChannel(roomID uuid.UUID) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("call_%s_%d", roomID, time.Now().UnixNano())
	}
	return fmt.Sprintf("call_%s_%s", roomID, hex.EncodeToString(buf))
}
