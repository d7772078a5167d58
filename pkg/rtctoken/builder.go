package rtctoken

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Builder выпускает короткоживущие сигнальные токены для аудио/видео
// каналов. Без секрета работает деградированный режим: пустой токен,
// клиент подключается к каналу без защищенной сигнализации.
type Builder struct {
	secret string
	ttl    time.Duration
}

func NewBuilder(secret string, ttl time.Duration) *Builder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Builder{secret: secret, ttl: ttl}
}

// Configured сообщает, настроен ли выпуск токенов
func (b *Builder) Configured() bool {
	return b.secret != ""
}

type channelClaims struct {
	Channel string `json:"channel"`
	jwt.RegisteredClaims
}

// Build выпускает токен на пару (канал, пользователь).
// Токены не кэшируются: каждый запрос получает свежий.
func (b *Builder) Build(channel string, userID uuid.UUID) string {
	if b.secret == "" {
		return ""
	}

	now := time.Now()
	claims := channelClaims{
		Channel: channel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(b.secret))
	if err != nil {
		return ""
	}
	return signed
}

// Verify проверяет токен и возвращает канал и пользователя
func (b *Builder) Verify(raw string) (channel string, userID uuid.UUID, err error) {
	claims := &channelClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(b.secret), nil
	})
	if err != nil {
		return "", uuid.Nil, err
	}
	userID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return "", uuid.Nil, err
	}
	return claims.Channel, userID, nil
}
