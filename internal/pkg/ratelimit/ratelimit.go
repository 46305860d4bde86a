package ratelimit

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/cache"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/env"
)

const (
	defaultMax        = 120
	defaultExpiration = time.Minute
	storageDatabase   = 1 // cache and job queue use DB 0
)

// NewStorage creates the Redis storage shared by all API instances.
func NewStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient := cache.GetClient(); cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: storageDatabase,
		Reset:    false,
	})
}

// New returns a limiter keyed by API key hash, or client IP for anonymous
// calls. A nil storage keeps counters in process memory.
func New(storage fiber.Storage) fiber.Handler {
	max := defaultMax
	if v, err := strconv.Atoi(env.GetEnv("API_RATE_LIMIT", "")); err == nil && v > 0 {
		max = v
	}

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   defaultExpiration,
		Storage:      storage,
		KeyGenerator: keyFor,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests",
			})
		},
	})
}

func keyFor(c *fiber.Ctx) string {
	if key := c.Get("X-API-Key"); key != "" {
		return "key:" + models.HashAPIKey(key)
	}
	if auth := c.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return "key:" + models.HashAPIKey(auth[7:])
	}
	return "ip:" + c.IP()
}
