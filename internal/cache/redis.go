// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/middleware"

	"github.com/redis/go-redis/v9"
)

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Connect returns a Redis client for addr, or nil when addr is empty or unreachable.
// addr may be a redis:// URL or a bare host:port.
func Connect(addr string) *redis.Client {
	if addr == "" {
		middleware.Logger.Info("REDIS_URL not set, caching disabled")
		return nil
	}

	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			middleware.Logger.Warn("invalid REDIS_URL, continuing without cache", slog.String("error", err.Error()))
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("Redis connection failed, continuing without cache", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}

	middleware.Logger.Info("Redis connected successfully")
	return client
}
