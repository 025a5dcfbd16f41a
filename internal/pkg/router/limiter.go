package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sosdesk/intake/internal/pkg/env"
)

const (
	DefaultRateLimit  = 120
	DefaultRateWindow = time.Minute
	limiterDatabase   = 2
)

// NewLimiterStorage keeps limiter counters in Redis so every instance
// shares them. The cache client's address and password are reused on a
// separate database.
func NewLimiterStorage(client *goredis.Client) fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetEnvInt("LIMITER_DB", limiterDatabase),
		Reset:    false,
	})
}

// newLimiter builds the API rate limiter. A nil storage keeps counters in
// memory.
func newLimiter(storage fiber.Storage, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "Rate limit exceeded",
			})
		},
	})
}
