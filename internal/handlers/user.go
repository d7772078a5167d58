package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/database"
	"github.com/thereayou/crowdchat/internal/middleware"
)

// UserHandler — профили и присутствие
type UserHandler struct {
	db       *database.Database
	presence *cache.PresenceStore
}

func NewUserHandler(db *database.Database, presence *cache.PresenceStore) *UserHandler {
	return &UserHandler{db: db, presence: presence}
}

type userProfile struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen"`
}

// Me — профиль текущего пользователя
func (h *UserHandler) Me(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	user, err := h.db.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
	})
}

// GetUser — чужой профиль с присутствием из Redis
func (h *UserHandler) GetUser(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	user, err := h.db.GetUser(targetID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	ctx := c.Request.Context()
	c.JSON(http.StatusOK, userProfile{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		IsOnline:  h.presence.IsOnline(ctx, user.ID),
		LastSeen:  h.presence.LastSeen(ctx, user.ID),
	})
}
