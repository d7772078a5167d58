package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/crowdchat/pkg/auth"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *auth.JWTManager, *redis.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)

	r := gin.New()
	r.GET("/protected", AuthMiddleware(jwtMgr, rdb), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUserID(c)})
	})
	r.GET("/ws", WSAuthMiddleware(jwtMgr, rdb), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUserID(c)})
	})

	return r, jwtMgr, rdb
}

func TestAuthMiddleware(t *testing.T) {
	r, jwtMgr, _ := setupAuthRouter(t)

	userID := uuid.New()
	token, err := jwtMgr.Generate(userID.String())
	require.NoError(t, err)

	// Валидный токен проходит
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Без заголовка — 401
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Мусорный токен — 401
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareBlacklist(t *testing.T) {
	r, jwtMgr, rdb := setupAuthRouter(t)

	token, err := jwtMgr.Generate(uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, rdb.Set(context.Background(), "blacklist:"+token, 1, time.Hour).Err())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSAuthMiddlewareQueryToken(t *testing.T) {
	r, jwtMgr, _ := setupAuthRouter(t)

	token, err := jwtMgr.Generate(uuid.NewString())
	require.NoError(t, err)

	// Токен в query — основной путь для WebSocket
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Заголовок тоже принимается
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Совсем без токена — 401
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
