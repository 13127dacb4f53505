// Package events доставляет записи outbox подписчикам: подключённым по WebSocket
// участникам и другим экземплярам сервиса через Redis.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
)

// Publisher доставляет одно событие. Доставка «как минимум один раз»:
// при ошибке событие останется в outbox и будет отправлено повторно.
type Publisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// Broadcaster: получатель событий по идентификатору пользователя (ws.Hub).
type Broadcaster interface {
	BroadcastToUser(ctx context.Context, userID uuid.UUID, name string, data json.RawMessage) error
}

// HubPublisher рассылает событие каждому получателю через WebSocket хаб.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, evt *event.Event) error {
	for _, userID := range evt.Recipients {
		if err := p.hub.BroadcastToUser(ctx, userID, string(evt.Name), evt.Payload); err != nil {
			return fmt.Errorf("ws publish %s: %w", evt.Name, err)
		}
	}
	return nil
}

// RedisClient: часть *redis.Client, нужная для публикации.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher публикует полный конверт события в канал pub/sub.
type RedisPublisher struct {
	client  RedisClient
	channel string
}

const DefaultChannel = "marketplace.events"

func NewRedisPublisher(client RedisClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt *event.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.ID, err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", evt.Name, err)
	}
	return nil
}

// Fanout отправляет событие всем публикаторам и объединяет их ошибки.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt *event.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
