package middleware

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/DenialAppealPro/appealpro/internal/pkg/cache"
	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
)

// rateLimitRedisDB keeps limiter counters apart from the cache (DB 0).
const rateLimitRedisDB = 2

// RateLimitConfig controls the API limiter.
type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
	Storage    fiber.Storage
}

// LoadRateLimitConfig reads RATE_LIMIT_MAX and RATE_LIMIT_WINDOW_SECONDS.
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Max:        env.GetEnvInt("RATE_LIMIT_MAX", 120),
		Expiration: time.Duration(env.GetEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
}

// NewRedisLimiterStorage shares limiter counters across processes through Redis.
func NewRedisLimiterStorage() fiber.Storage {
	opts := cache.Options()
	host, port := "localhost", 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	log.Infof("[RateLimit] Using Redis storage at %s:%d (db %d)", host, port, rateLimitRedisDB)
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: rateLimitRedisDB,
		Reset:    false,
	})
}

// RateLimit limits requests per API key, falling back to the client IP.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id, ok := c.Locals(LocalsAPIKeyID).(string); ok && id != "" {
				return "key:" + id
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	})
}
