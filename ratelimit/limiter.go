package ratelimit

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Config struct {
	Max    int
	Window time.Duration
	// Storage nil means fiber's in-process memory store.
	Storage fiber.Storage
	// SkipPaths are exempt, e.g. provider webhooks that must never see a 429.
	SkipPaths []string
}

// New returns a fixed-window limiter keyed by client IP.
func New(cfg Config) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[strings.TrimRight(p, "/")] = struct{}{}
	}

	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		Storage:    cfg.Storage,
		Next: func(c *fiber.Ctx) bool {
			_, ok := skip[strings.TrimRight(c.Path(), "/")]
			return ok
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "too many requests, slow down",
			})
		},
	})
}
