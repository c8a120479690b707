package verification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// expiredGrace keeps an expired code around briefly so confirmation can
// report "expired" instead of "not found".
const expiredGrace = 5 * time.Minute

// RedisStore shares codes between instances. Keys are "verify:<email>".
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(email string) string { return "verify:" + email }

func (s *RedisStore) Put(ctx context.Context, email string, c Code) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ttl := time.Until(c.ExpiresAt) + expiredGrace
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.client.Set(ctx, s.key(email), b, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, email string) (Code, error) {
	raw, err := s.client.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Code{}, ErrNotFound
	} else if err != nil {
		return Code{}, err
	}
	var c Code
	if err := json.Unmarshal(raw, &c); err != nil {
		return Code{}, ErrNotFound
	}
	return c, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, s.key(email)).Err()
}
