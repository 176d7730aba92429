package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smartmark/smartmark/internal/domain"
)

// KeyPrefixChanges is the prefix for per-user change channels.
const KeyPrefixChanges = "smartmark:changes:"

// ChannelKey returns the pub/sub channel carrying change events for a user.
func ChannelKey(userID string) string {
	return KeyPrefixChanges + userID
}

// Publisher is the write side of the realtime channel. Satisfied by *Broker.
type Publisher interface {
	PublishChange(ctx context.Context, userID string, event domain.ChangeEvent) error
}

// Broker fans row-level change events out to subscribed sessions through
// Redis pub/sub. One channel per user; every open session (tab, device)
// holds its own subscription and reconciles independently.
type Broker struct {
	client *redis.Client
}

// NewBroker creates a new Broker on top of an established Redis client.
func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

// PublishChange sends a change event to every subscriber of the user's
// channel. Delivery is fire-and-forget: sessions that miss an event
// converge on their next full list load.
func (b *Broker) PublishChange(ctx context.Context, userID string, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelKey(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe opens a subscription to the user's change channel. The caller
// owns the returned PubSub and must Close it when the session ends.
func (b *Broker) Subscribe(ctx context.Context, userID string) *redis.PubSub {
	return b.client.Subscribe(ctx, ChannelKey(userID))
}
