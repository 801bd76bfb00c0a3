package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix = "user:%d"
	PostKeyPrefix = "post:%d"
)

const (
	UserTTL = 5 * time.Minute
	PostTTL = 30 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// Cache is a JSON cache over Redis. A Cache with a nil client passes every call through.
type Cache struct {
	client *redis.Client
}

// New wraps client; client may be nil.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	s, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which must populate dest),
// then stores the result with ttl. Cache failures fall back to fetch and are logged.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := c.SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate drops key; errors are logged only.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidate failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (c *Cache) InvalidateUser(ctx context.Context, userID uint) {
	c.Invalidate(ctx, UserKey(userID))
}

func (c *Cache) InvalidatePost(ctx context.Context, postID uint) {
	c.Invalidate(ctx, PostKey(postID))
}

// Ping checks the Redis connection. A disabled cache is never healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return errors.New("cache disabled")
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
