package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/echo-go-api/internal/utils"
)

func rateLimitedApp(userID interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User"); id != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	app.Post("/votes", RateLimit("votes", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRateLimitKeysAnonymousCallersByIP(t *testing.T) {
	app := rateLimitedApp(uint(4))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/votes", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/votes", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get("Retry-After"))

	var payload utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.False(t, payload.Success)
	require.Equal(t, "too many votes requests", payload.Message)

	req := httptest.NewRequest(http.MethodPost, "/votes", nil)
	req.Header.Set("X-User", "4")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "an authenticated caller has its own bucket")
}

func TestRateLimitKey(t *testing.T) {
	app := fiber.New()
	var keys []string
	app.Get("/", func(c *fiber.Ctx) error {
		keys = append(keys, rateLimitKey("votes")(c))
		c.Locals("user_id", uint(0))
		keys = append(keys, rateLimitKey("votes")(c))
		c.Locals("user_id", uint(12))
		keys = append(keys, rateLimitKey("votes")(c))
		return nil
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Len(t, keys, 3)
	require.True(t, strings.HasPrefix(keys[0], "votes:ip:"), keys[0])
	require.Equal(t, keys[0], keys[1], "a zero user id falls back to the client IP")
	require.Equal(t, "votes:user:12", keys[2])
}
