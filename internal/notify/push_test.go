package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/thereayou/crowdchat/internal/models"
)

func TestMessagePreview(t *testing.T) {
	dur := 125.0

	assert.Equal(t, "hi", MessagePreview(&models.Message{Body: "hi"}))
	assert.Equal(t, "📷 Photo", MessagePreview(&models.Message{ImageURL: "u"}))
	assert.Equal(t, "📷 look", MessagePreview(&models.Message{ImageURL: "u", Body: "look"}))
	assert.Equal(t, "🎤 Voice message (2:05)", MessagePreview(&models.Message{AudioURL: "u", AudioDuration: &dur}))
	assert.Equal(t, "🎤 Voice message", MessagePreview(&models.Message{AudioURL: "u"}))
	assert.Equal(t, "📎 report.pdf", MessagePreview(&models.Message{FileURL: "u", FileName: "report.pdf"}))
	assert.Equal(t, "📎 File", MessagePreview(&models.Message{FileURL: "u"}))
	assert.Equal(t, "New message", MessagePreview(&models.Message{}))

	long := strings.Repeat("a", 150)
	preview := MessagePreview(&models.Message{Body: long})
	assert.Equal(t, long[:100]+"...", preview)

	// Обрезка по рунам: многобайтовые символы не режутся посередине
	cyrillic := strings.Repeat("ж", 150)
	preview = MessagePreview(&models.Message{Body: cyrillic})
	assert.Equal(t, strings.Repeat("ж", 100)+"...", preview)
	assert.True(t, utf8.ValidString(preview))

	preview = MessagePreview(&models.Message{ImageURL: "u", Body: cyrillic})
	assert.Equal(t, "📷 "+strings.Repeat("ж", 50)+"...", preview)
	assert.True(t, utf8.ValidString(preview))
}

func TestNotifyWithoutTokenIsNoop(t *testing.T) {
	p := NewPushSender("")

	// Без токена и без пользователя — тихий выход, без паники
	p.Notify(nil, "t", "b", nil)
	p.Notify(&models.User{}, "t", "b", nil)
}
