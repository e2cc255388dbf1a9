package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/echo-go-api/internal/config"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// DependencyCheck pings one backing store.
type DependencyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// ReadinessCheck reports 503 when any backing store fails its ping.
func ReadinessCheck(timeout time.Duration, checks ...DependencyCheck) fiber.Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(requestContext(c), timeout)
		defer cancel()

		status := make(map[string]string, len(checks))
		ready := true
		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				status[check.Name] = err.Error()
				ready = false
				continue
			}
			status[check.Name] = "ok"
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    status,
				Message: "dependencies unavailable",
			})
		}
		return utils.SendSuccess(c, "service ready", status)
	}
}
