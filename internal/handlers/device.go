package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/thereayou/crowdchat/internal/database"
	"github.com/thereayou/crowdchat/internal/handlers/dto"
	"github.com/thereayou/crowdchat/internal/middleware"
	"github.com/thereayou/crowdchat/internal/models"
	ws "github.com/thereayou/crowdchat/internal/websocket"
	"github.com/thereayou/crowdchat/pkg/auth"
)

// DeviceHandler ведет список устройств пользователя
type DeviceHandler struct {
	db         *database.Database
	hub        *ws.Hub
	redis      *redis.Client
	jwtManager *auth.JWTManager
}

func NewDeviceHandler(db *database.Database, hub *ws.Hub, rdb *redis.Client, jwtMgr *auth.JWTManager) *DeviceHandler {
	return &DeviceHandler{db: db, hub: hub, redis: rdb, jwtManager: jwtMgr}
}

// ListDevices отдает устройства текущего пользователя
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	devices, err := h.db.ListDevices(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load devices"})
		return
	}

	out := make([]dto.DeviceResponse, 0, len(devices))
	for i := range devices {
		out = append(out, dto.NewDeviceResponse(&devices[i]))
	}
	c.JSON(http.StatusOK, out)
}

// RegisterDevice регистрирует устройство и запоминает push-токен.
// Повторная регистрация того же device_id обновляет запись.
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req dto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device := &models.Device{
		UserID:       userID,
		DeviceID:     req.DeviceID,
		DeviceName:   req.DeviceName,
		RefreshToken: req.RefreshToken,
		IsActive:     true,
		LastActiveAt: time.Now(),
		CreatedAt:    time.Now(),
	}
	if err := h.db.RegisterDevice(device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}

	if req.PushToken != "" {
		if err := h.db.UpdatePushToken(userID, req.PushToken); err != nil {
			log.Printf("device: update push token for %s: %v", userID, err)
		}
	}

	c.JSON(http.StatusCreated, dto.NewDeviceResponse(device))
}

// TerminateDevice гасит сессию устройства: отзывает refresh-токен
// и шлет device_terminated на личный канал пользователя
func (h *DeviceHandler) TerminateDevice(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device ID"})
		return
	}

	device, err := h.db.GetDevice(deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if device.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your device"})
		return
	}

	if device.RefreshToken != "" {
		if exp, err := h.jwtManager.Expiry(device.RefreshToken); err == nil {
			ttl := time.Until(exp)
			if ttl > 0 {
				h.redis.Set(context.Background(), "blacklist:"+device.RefreshToken, 1, ttl)
			}
		}
	}

	if err := h.db.DeactivateDevice(device.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to terminate device"})
		return
	}

	payload := map[string]interface{}{
		"device_id": device.DeviceID,
	}
	if ev, err := ws.NewEvent(ws.TypeDeviceTerminated, nil, userID, payload); err == nil {
		h.hub.Broadcast(ws.UserGroup(userID), ev)
	}

	c.Status(http.StatusOK)
}
