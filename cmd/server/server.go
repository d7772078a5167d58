package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/thereayou/crowdchat/internal/cache"
	"github.com/thereayou/crowdchat/internal/database"
	"github.com/thereayou/crowdchat/internal/handlers"
	"github.com/thereayou/crowdchat/internal/notify"
	ws "github.com/thereayou/crowdchat/internal/websocket"
	"github.com/thereayou/crowdchat/pkg/auth"
	"github.com/thereayou/crowdchat/pkg/rtctoken"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *ws.Hub

	AuthH   *handlers.AuthHandler
	RoomH   *handlers.RoomHandler
	CallH   *handlers.CallHandler
	DeviceH *handlers.DeviceHandler
	UserH   *handlers.UserHandler
	WSH     *handlers.WebSocketHandler
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	// Без RTC_SECRET токены звонков не выпускаются: деградация, не отказ
	rtcTokens := rtctoken.NewBuilder(os.Getenv("RTC_SECRET"), time.Hour)
	if !rtcTokens.Configured() {
		log.Println("RTC_SECRET not set, call tokens disabled")
	}

	presence := cache.NewPresenceStore(rdb)
	unread := cache.NewUnreadCounters(rdb)
	msgCache := cache.NewRoomMessages(rdb)
	push := notify.NewPushSender(os.Getenv("PUSH_ENDPOINT"))

	bridge := ws.NewRedisBridge(rdb)
	hub := ws.NewHub(bridge)
	go hub.Run()

	chatSvc := handlers.NewChatService(dbConn, hub, unread, msgCache, push)

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	roomH := handlers.NewRoomHandler(dbConn, chatSvc, presence)
	callH := handlers.NewCallHandler(dbConn, chatSvc, rtcTokens, push)
	deviceH := handlers.NewDeviceHandler(dbConn, hub, rdb, jwtMgr)
	userH := handlers.NewUserHandler(dbConn, presence)
	wsH := handlers.NewWebSocketHandler(dbConn, hub, chatSvc, presence)

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, presence, authH, roomH, callH, deviceH, userH, wsH)

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Hub:        hub,
		AuthH:      authH,
		RoomH:      roomH,
		CallH:      callH,
		DeviceH:    deviceH,
		UserH:      userH,
		WSH:        wsH,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on port %s", port)
	if err := s.Router.Run(":" + port); err != nil {
		log.Fatalf("Server run error: %v", err)
	}
}
