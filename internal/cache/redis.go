package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oggyb/campusknot/internal/config"
)

const (
	likeCountTTL = time.Hour
	likeFillTTL  = 10 * time.Second
)

// commitFill stores a counted value only while the fill token is unchanged.
// KEYS: counter, fill marker. ARGV: token, count, ttl seconds.
var commitFill = redis.NewScript(`
if redis.call("GET", KEYS[2]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "EX", ARGV[3])
	redis.call("DEL", KEYS[2])
	return 1
end
return 0
`)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForLikeCount generates Redis key for a user's received-like count
func (c *RedisCache) KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:received:%d", userID)
}

func (c *RedisCache) keyForLikeFill(userID uint64) string {
	return fmt.Sprintf("likes:received:%d:fill", userID)
}

// SetLikeCount stores a freshly computed count with a 1h TTL.
func (c *RedisCache) SetLikeCount(ctx context.Context, userID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForLikeCount(userID), count, likeCountTTL).Err()
}

// GetLikeCount returns the cached count. found is false on a cache miss.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID uint64) (count int64, found bool, err error) {
	key := c.KeyForLikeCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// corrupt entry, drop it and let the caller recompute
		_ = c.Client.Del(ctx, key).Err()
		return 0, false, nil
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, likeCountTTL).Err()
	return n, true, nil
}

// BeginLikeCountFill marks a recount of userID's counter in progress and
// returns the token CommitLikeCountFill needs.
func (c *RedisCache) BeginLikeCountFill(ctx context.Context, userID uint64) (string, error) {
	token := uuid.NewString()
	if err := c.Client.Set(ctx, c.keyForLikeFill(userID), token, likeFillTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// CommitLikeCountFill caches count unless the counter was invalidated after
// BeginLikeCountFill. stored reports whether the value was written.
func (c *RedisCache) CommitLikeCountFill(ctx context.Context, userID uint64, token string, count int64) (stored bool, err error) {
	keys := []string{c.KeyForLikeCount(userID), c.keyForLikeFill(userID)}
	n, err := commitFill.Run(ctx, c.Client, keys, token, count, int(likeCountTTL.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DropLikeCounts invalidates the cached counts of the given users along with
// any recount in progress.
func (c *RedisCache) DropLikeCounts(ctx context.Context, userIDs ...uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.KeyForLikeCount(id), c.keyForLikeFill(id))
	}
	return c.Client.Del(ctx, keys...).Err()
}
