package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/handlers"
	"github.com/thereayou/crowdchat/internal/middleware"
	"github.com/thereayou/crowdchat/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	presence *cache.PresenceStore,
	authH *handlers.AuthHandler,
	roomH *handlers.RoomHandler,
	callH *handlers.CallHandler,
	deviceH *handlers.DeviceHandler,
	userH *handlers.UserHandler,
	wsH *handlers.WebSocketHandler,
) {
	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", middleware.AuthMiddleware(jwtMgr, rdb), authH.Logout)
	}

	// API endpoints: каждый авторизованный запрос продлевает присутствие
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtMgr, rdb), middleware.PresenceMiddleware(presence))
	{
		api.GET("/users/me", userH.Me)
		api.GET("/users/:id", userH.GetUser)

		api.GET("/rooms", roomH.ListRooms)
		api.POST("/rooms/get-or-create", roomH.GetOrCreateDirectRoom)
		api.POST("/rooms/groups", roomH.CreateGroup)
		api.GET("/rooms/groups/search", roomH.SearchGroups)
		api.GET("/rooms/:id", roomH.GetRoom)
		api.DELETE("/rooms/:id", roomH.DeleteRoom)
		api.GET("/rooms/:id/messages", roomH.GetMessages)
		api.POST("/rooms/:id/messages", roomH.SendMessage)
		api.PATCH("/rooms/:id/messages/:messageID", roomH.EditMessage)
		api.DELETE("/rooms/:id/messages/:messageID", roomH.DeleteMessage)
		api.POST("/rooms/:id/read", roomH.MarkRead)
		api.POST("/rooms/:id/join", roomH.JoinGroup)
		api.POST("/rooms/:id/leave", roomH.LeaveGroup)
		api.GET("/rooms/:id/members", roomH.ListMembers)
		api.POST("/rooms/:id/members", roomH.AddMember)
		api.DELETE("/rooms/:id/members", roomH.KickMember)
		api.POST("/rooms/:id/admins", roomH.SetAdmin)

		api.POST("/calls/start", callH.StartCall)
		api.POST("/calls/:id/answer", callH.AnswerCall)
		api.POST("/calls/:id/reject", callH.RejectCall)
		api.POST("/calls/:id/end", callH.EndCall)
		api.GET("/calls/active", callH.ActiveCall)
		api.GET("/calls/history", callH.CallHistory)

		api.GET("/devices", deviceH.ListDevices)
		api.POST("/devices", deviceH.RegisterDevice)
		api.POST("/devices/:id/terminate", deviceH.TerminateDevice)
	}

	// WebSocket: токен приходит в query, апгрейд после авторизации
	wsGroup := r.Group("/ws")
	wsGroup.Use(middleware.WSAuthMiddleware(jwtMgr, rdb))
	{
		wsGroup.GET("/chat/:id", wsH.HandleChat)
		wsGroup.GET("/user", wsH.HandleUser)
	}
}
