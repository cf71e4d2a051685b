package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glowmart/cart-session/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "cart:invalidate:"

// RedisBus broadcasts invalidation messages over a per-user Redis Pub/Sub
// channel, which also keeps sibling service instances convergent.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisBus{client: client, logger: logger}
}

func Channel(userID string) string {
	return channelPrefix + userID
}

func (b *RedisBus) Fire(ctx context.Context, msg Message) error {

	if msg.Timestamp == 0 {
		msg.Timestamp = now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := b.client.Publish(ctx, Channel(msg.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation message: %w", err)
	}

	metrics.InvalidationsPublished.Inc()

	b.logger.Debug("Invalidation published",
		slog.String("user_id", msg.UserID),
		slog.String("source_tag", msg.SourceTag),
		slog.String("reason", msg.Reason))

	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, userID string, handler Handler) (func(), error) {

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("bus is closed")
	}
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, Channel(userID))

	// Confirm the subscription before returning so callers never miss a
	// broadcast fired right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(userID), err)
	}

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		for raw := range pubsub.Channel() {
			msg, err := decode([]byte(raw.Payload))
			if err != nil {
				b.logger.Warn("Dropping malformed invalidation message",
					slog.String("channel", raw.Channel),
					slog.String("error", err.Error()))

				continue
			}

			handler(msg)
		}
	}()

	var once sync.Once

	unsubscribe := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				b.logger.Warn("Failed to close pubsub", slog.String("error", err.Error()))
			}
		})
	}

	return unsubscribe, nil
}

// Close waits for all subscription loops to drain.
func (b *RedisBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
}

func decode(payload []byte) (Message, error) {

	var msg Message

	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal invalidation message: %w", err)
	}

	return msg, nil
}
