package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/config"
	"github.com/noah-isme/echo-go-api/internal/handler"
	"github.com/noah-isme/echo-go-api/internal/middleware"
	"github.com/noah-isme/echo-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	FeedHandler     *handler.FeedHandler
	VoteHandler     *handler.VoteHandler
	ChatHandler     *handler.ChatHandler
	SweepHandler    *handler.SweepHandler
	Parser          *auth.Parser
	ReadinessChecks []handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	identity := middleware.OptionalJWT(deps.Parser)
	requireAuth := middleware.RequireAuthenticated()

	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	}, identity)
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/ready", handler.ReadinessCheck(cfg.StoreTimeout, deps.ReadinessChecks...))

	if deps.FeedHandler != nil {
		deps.FeedHandler.Register(api, requireAuth)
	}

	if deps.VoteHandler != nil {
		deps.VoteHandler.Register(api, requireAuth, middleware.RateLimit("votes", cfg.VoteRateLimit, time.Minute))
	}

	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chats", requireAuth))
		deps.ChatHandler.RegisterSocket(app.Group("/ws", identity))
	}

	if deps.SweepHandler != nil {
		admin := api.Group("/admin", middleware.JWTProtected(deps.Parser), middleware.RequireStaff())
		deps.SweepHandler.Register(admin.Group("/sweeps"))
	}
}
