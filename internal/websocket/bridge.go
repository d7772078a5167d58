package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// bridgeChannel — канал Redis Pub/Sub для межузловой рассылки
const bridgeChannel = "chat:events"

// RedisBridge переносит события между узлами через Redis Pub/Sub.
// Каждый Broadcast публикуется с меткой узла; слушатель повторно
// раздает локальным подписчикам только чужие события.
type RedisBridge struct {
	redis  *redis.Client
	nodeID string
}

func NewRedisBridge(rdb *redis.Client) *RedisBridge {
	return &RedisBridge{
		redis:  rdb,
		nodeID: uuid.New().String(),
	}
}

type bridgeEnvelope struct {
	NodeID string `json:"node_id"`
	Group  string `json:"group"`
	Event  *Event `json:"event"`
}

// Publish отправляет событие в общий канал
func (b *RedisBridge) Publish(ctx context.Context, group string, ev *Event) error {
	payload, err := json.Marshal(bridgeEnvelope{
		NodeID: b.nodeID,
		Group:  group,
		Event:  ev,
	})
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, bridgeChannel, payload).Err()
}

// Listen читает канал моста и раздает чужие события локально
func (b *RedisBridge) Listen(ctx context.Context, deliver func(group string, ev *Event)) {
	pubsub := b.redis.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("bridge: unmarshal envelope: %v", err)
				continue
			}

			// Свои события уже доставлены локально
			if env.NodeID == b.nodeID || env.Event == nil {
				continue
			}

			deliver(env.Group, env.Event)
		}
	}
}
