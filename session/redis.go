package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps token keys in Redis so that several client processes share one
// session. Writes run inside MULTI/EXEC and are announced on a Pub/Sub channel.
type RedisStorage struct {
	redis   redis.UniversalClient
	channel string
	origin  string
}

// NewRedisStorage returns a storage whose change channel is "<prefix>:changes".
// Each instance tags its announcements with a random origin id and ignores its own.
func NewRedisStorage(client redis.UniversalClient, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "gosession"
	}
	return &RedisStorage{
		redis:   client,
		channel: prefix + ":changes",
		origin:  uuid.NewString(),
	}
}

// Channel returns the Pub/Sub channel used for change announcements.
func (s *RedisStorage) Channel() string {
	return s.channel
}

// GetMulti implements [Storage] with one MGET.
func (s *RedisStorage) GetMulti(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = str
	}
	return out, nil
}

// SetMulti implements [Storage]. All keys and their announcements share one transaction.
func (s *RedisStorage) SetMulti(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, 0)
		}
		for k := range values {
			pipe.Publish(ctx, s.channel, s.message(k))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Delete implements [Storage] with one DEL inside a transaction.
func (s *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, k := range keys {
			pipe.Publish(ctx, s.channel, s.message(k))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Watch implements [Watcher]. It returns once the subscription is confirmed.
func (s *RedisStorage) Watch(ctx context.Context) (<-chan Change, error) {
	sub := s.redis.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	out := make(chan Change, watchBuffer)
	msgs := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				origin, key, found := strings.Cut(msg.Payload, "|")
				if !found || origin == s.origin {
					continue
				}
				select {
				case out <- Change{Key: key}:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (s *RedisStorage) message(key string) string {
	return s.origin + "|" + key
}
