package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/crowdchat/internal/cache"
)

// PresenceMiddleware продлевает окно онлайна после каждого
// аутентифицированного запроса. Это скользящий сигнал живости,
// а не событие подключения/отключения.
func PresenceMiddleware(presence *cache.PresenceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		raw, ok := c.Get(UserIDKey)
		if !ok {
			return
		}
		userID, ok := raw.(uuid.UUID)
		if !ok {
			return
		}

		presence.SetOnline(c.Request.Context(), userID)
	}
}
