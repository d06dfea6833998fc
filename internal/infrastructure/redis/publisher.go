package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/redis/go-redis/v9"
)

// EventsChannel is the pub/sub channel settlement events are published on.
const EventsChannel = "settlement_events"

// EventPublisher publishes settlement events as JSON on a Redis channel.
// Delivery is at most once: subscribers that are not listening miss events.
type EventPublisher struct {
	client  *redis.Client
	channel string
}

var _ application.EventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client, channel: EventsChannel}
}

func (p *EventPublisher) Publish(ctx context.Context, event application.SettlementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish settlement event: %w", err)
	}
	return nil
}
