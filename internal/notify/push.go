package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/thereayou/crowdchat/internal/models"
)

// defaultEndpoint — HTTP API push-шлюза Expo
const defaultEndpoint = "https://exp.host/--/api/v2/push/send"

// PushSender шлет push-уведомления fire-and-forget.
// Любая ошибка логируется и никогда не доходит до вызывающего пути.
type PushSender struct {
	endpoint string
	client   *http.Client
}

func NewPushSender(endpoint string) *PushSender {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &PushSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type pushMessage struct {
	To    string                 `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
	Sound string                 `json:"sound"`
}

// Notify отправляет уведомление пользователю в отдельной горутине.
// Без push-токена тихо выходит.
func (p *PushSender) Notify(user *models.User, title, body string, data map[string]interface{}) {
	if user == nil || user.ExpoPushToken == "" {
		return
	}
	if title == "" {
		title = "New notification"
	}
	if body == "" {
		body = "You have a new notification"
	}

	token := user.ExpoPushToken
	go func() {
		payload, err := json.Marshal(pushMessage{
			To:    token,
			Title: title,
			Body:  body,
			Data:  data,
			Sound: "default",
		})
		if err != nil {
			log.Printf("push: marshal payload: %v", err)
			return
		}

		resp, err := p.client.Post(p.endpoint, "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Printf("push: send failed: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Printf("push: gateway returned %s", resp.Status)
		}
	}()
}

// MessagePreview форматирует тело уведомления о новом сообщении
func MessagePreview(m *models.Message) string {
	switch {
	case m.ImageURL != "" && m.Body != "":
		return fmt.Sprintf("📷 %s", truncateRunes(m.Body, 50))
	case m.ImageURL != "":
		return "📷 Photo"
	case m.AudioURL != "":
		if m.AudioDuration != nil {
			mins := int(*m.AudioDuration) / 60
			secs := int(*m.AudioDuration) % 60
			return fmt.Sprintf("🎤 Voice message (%d:%02d)", mins, secs)
		}
		return "🎤 Voice message"
	case m.FileURL != "":
		if m.FileName != "" {
			return fmt.Sprintf("📎 %s", m.FileName)
		}
		return "📎 File"
	case m.Body != "":
		return truncateRunes(m.Body, 100)
	}
	return "New message"
}

// truncateRunes режет по рунам, не по байтам: кириллица и эмодзи
// не превращаются в мусор на границе
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
