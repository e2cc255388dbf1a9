package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/echo-go-api/internal/utils"
)

// RateLimit allows max requests per window for each caller of the named bucket.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
func RateLimit(bucket string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}
	retryAfter := strconv.Itoa(int((window + time.Second - 1) / time.Second))

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: rateLimitKey(bucket),
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many "+bucket+" requests")
		},
	})
}

func rateLimitKey(bucket string) func(*fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if id, ok := c.Locals("user_id").(uint); ok && id != 0 {
			return bucket + ":user:" + strconv.FormatUint(uint64(id), 10)
		}
		return bucket + ":ip:" + c.IP()
	}
}
