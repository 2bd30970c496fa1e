package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes events on one Redis channel per room so every
// process instance sees them.
type RedisBroker struct {
	client *redis.Client
	logger echo.Logger
}

func NewRedisBroker(client *redis.Client, logger echo.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(e.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("publishing %s for room %s: %w", e.Type, e.RoomID, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, roomID string) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, channelName(roomID))

	// Wait for the subscription to be confirmed before handing out the channel
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to room %s: %w", roomID, err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.logger.Warnf("dropping malformed event on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- e:
				default:
					b.logger.Warnf("subscriber for room %s is lagging, dropping %s", roomID, e.Type)
				}
			}
		}
	}()

	return out, nil
}
