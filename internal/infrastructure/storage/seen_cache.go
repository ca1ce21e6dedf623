package storage

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"NewsForwarder/internal/domain"
	"NewsForwarder/internal/ports"
)

// setClient is the slice of the redis client used by SeenCache.
type setClient interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// SeenCache fronts a SeenStore with a redis set; sqlite stays the source of truth.
type SeenCache struct {
	client setClient
	key    string
	next   ports.SeenStore
	logger *slog.Logger
}

var _ ports.SeenStore = (*SeenCache)(nil)

// NewSeenCache wraps next with a redis-backed membership cache under key.
func NewSeenCache(client setClient, key string, next ports.SeenStore, logger *slog.Logger) *SeenCache {
	return &SeenCache{client: client, key: key, next: next, logger: logger}
}

// NewRedisClient builds a go-redis client for the configured address.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// HasSeen answers from redis when possible and back-fills hits found in the store.
func (c *SeenCache) HasSeen(ctx context.Context, id string) (bool, error) {
	id = domain.NormalizeID(id)

	hit, err := c.client.SIsMember(ctx, c.key, id).Result()
	if err == nil && hit {
		return true, nil
	}
	if err != nil {
		c.warn("seen cache lookup failed", "id", id, "error", err)
	}

	seen, err := c.next.HasSeen(ctx, id)
	if err != nil {
		return false, err
	}
	if seen {
		c.remember(ctx, id)
	}
	return seen, nil
}

// MarkSeen writes through to the store first, then to redis.
func (c *SeenCache) MarkSeen(ctx context.Context, id, title string) error {
	id = domain.NormalizeID(id)
	if err := c.next.MarkSeen(ctx, id, title); err != nil {
		return err
	}
	c.remember(ctx, id)
	return nil
}

func (c *SeenCache) remember(ctx context.Context, id string) {
	if err := c.client.SAdd(ctx, c.key, id).Err(); err != nil {
		c.warn("seen cache write failed", "id", id, "error", err)
	}
}

func (c *SeenCache) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
