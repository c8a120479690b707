package live

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Presence counts live sessions per user. Join reports the offline→online
// transition and Leave the online→offline one.
type Presence interface {
	Join(ctx context.Context, userID uint64) (first bool, err error)
	Leave(ctx context.Context, userID uint64) (last bool, err error)
	Online(ctx context.Context, userID uint64) (bool, error)
}

// MemoryPresence is process-local.
type MemoryPresence struct {
	mu       sync.Mutex
	sessions map[uint64]int
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{sessions: make(map[uint64]int)}
}

func (p *MemoryPresence) Join(_ context.Context, userID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[userID]++
	return p.sessions[userID] == 1, nil
}

func (p *MemoryPresence) Leave(_ context.Context, userID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.sessions[userID] - 1
	if n <= 0 {
		delete(p.sessions, userID)
		return true, nil
	}
	p.sessions[userID] = n
	return false, nil
}

func (p *MemoryPresence) Online(_ context.Context, userID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[userID] > 0, nil
}

const presenceKey = "presence:online"

// RedisPresence keeps session counts in one hash shared by all instances.
type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func (p *RedisPresence) Join(ctx context.Context, userID uint64) (bool, error) {
	n, err := p.client.HIncrBy(ctx, presenceKey, strconv.FormatUint(userID, 10), 1).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *RedisPresence) Leave(ctx context.Context, userID uint64) (bool, error) {
	field := strconv.FormatUint(userID, 10)
	n, err := p.client.HIncrBy(ctx, presenceKey, field, -1).Result()
	if err != nil {
		return false, err
	}
	if n <= 0 {
		return true, p.client.HDel(ctx, presenceKey, field).Err()
	}
	return false, nil
}

func (p *RedisPresence) Online(ctx context.Context, userID uint64) (bool, error) {
	n, err := p.client.HGet(ctx, presenceKey, strconv.FormatUint(userID, 10)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
