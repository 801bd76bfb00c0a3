package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "hit %d", i+1)
	}
	allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// another caller has its own window
	allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.Equal(t, time.Minute, mr.TTL("rl:login:ip:1"))
	mr.FastForward(time.Minute + time.Second)
	allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = CheckRateLimit(ctx, nil, "login", "ip:1", 3, time.Minute)
	assert.Error(t, err)
}

// failExpire makes every EXPIRE command fail.
type failExpire struct{}

func (failExpire) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "expire" {
			return errors.New("expire refused")
		}
		return next(ctx, cmd)
	}
}

func (failExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestCheckRateLimit_ExpireFailureDropsCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rdb.AddHook(failExpire{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := CheckRateLimit(ctx, rdb, "signup", "ip:1", 1, time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expire refused")
		assert.False(t, mr.Exists("rl:signup:ip:1"), "no counter may outlive a failed EXPIRE")
	}

	app := fiber.New()
	app.Post("/signup", RateLimit(rdb, 1, time.Minute, "signup"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signup", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode, "request %d", i+1)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New()
	app.Post("/signup", RateLimit(rdb, 2, time.Minute, "signup"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signup", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, statuses)

	// Redis going away fails open
	mr.Close()
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signup", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Get("/", RateLimit(nil, 1, time.Minute, "any"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
