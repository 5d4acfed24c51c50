package localstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const updatesSuffix = ":updates"

// RedisBackend shares state between instances through one Redis key and announces
// every save on a pub/sub channel tagged with the writer's instance id.
type RedisBackend struct {
	client     redis.UniversalClient
	key        string
	channel    string
	instanceID string
}

// NewRedisBackend stores state under storageKey.
func NewRedisBackend(client redis.UniversalClient, storageKey string) *RedisBackend {
	return &RedisBackend{
		client:     client,
		key:        storageKey,
		channel:    storageKey + updatesSuffix,
		instanceID: uuid.NewString(),
	}
}

func (backend *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := backend.client.Get(ctx, backend.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", backend.key, err)
	}
	return data, nil
}

func (backend *RedisBackend) Save(ctx context.Context, data []byte) error {
	if err := backend.client.Set(ctx, backend.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", backend.key, err)
	}
	if err := backend.client.Publish(ctx, backend.channel, backend.instanceID).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", backend.channel, err)
	}
	return nil
}

func (backend *RedisBackend) Watch(ctx context.Context, onChange func()) error {
	subscription := backend.client.Subscribe(ctx, backend.channel)
	defer subscription.Close()
	if _, err := subscription.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe %s: %w", backend.channel, err)
	}
	messages := subscription.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			if message.Payload != backend.instanceID {
				onChange()
			}
		}
	}
}
