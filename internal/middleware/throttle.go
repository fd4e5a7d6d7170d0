package middleware

import (
	"time"

	pkgerrors "myshop/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// ThrottleConfig holds the per-minute request budgets. A non-positive budget
// disables the corresponding limiter.
type ThrottleConfig struct {
	AnonPerMinute  int
	UserPerMinute  int
	BurstPerMinute int
	// Storage shares counters across instances; nil keeps them in process memory.
	Storage fiber.Storage
}

// Throttle limits anonymous callers by IP and authenticated callers by user id.
// It must run after Authenticate.
func Throttle(cfg ThrottleConfig) fiber.Handler {
	anon := perMinute(cfg.AnonPerMinute, cfg.Storage, "anon", func(c *fiber.Ctx) bool {
		return IdentityFrom(c) != nil
	})
	user := perMinute(cfg.UserPerMinute, cfg.Storage, "user", func(c *fiber.Ctx) bool {
		return IdentityFrom(c) == nil
	})
	return func(c *fiber.Ctx) error {
		if IdentityFrom(c) != nil {
			return user(c)
		}
		return anon(c)
	}
}

func perMinute(limit int, storage fiber.Storage, scope string, skip func(*fiber.Ctx) bool) fiber.Handler {
	if limit <= 0 {
		return passThrough
	}
	return limiter.New(limiter.Config{
		Next:       skip,
		Max:        limit,
		Expiration: time.Minute,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return scope + ":" + throttleKey(c)
		},
		LimitReached: limitReached,
	})
}

// Burst is the stricter budget for expensive writes, shared by anonymous and
// authenticated callers.
func Burst(cfg ThrottleConfig) fiber.Handler {
	if cfg.BurstPerMinute <= 0 {
		return passThrough
	}
	return limiter.New(limiter.Config{
		Max:        cfg.BurstPerMinute,
		Expiration: time.Minute,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "burst:" + throttleKey(c)
		},
		LimitReached: limitReached,
	})
}

func throttleKey(c *fiber.Ctx) string {
	if identity := IdentityFrom(c); identity != nil {
		return "user:" + identity.UserID
	}
	return "anon:" + c.IP()
}

func limitReached(c *fiber.Ctx) error {
	return pkgerrors.New(pkgerrors.CodeRateLimit, "Request was throttled.")
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
