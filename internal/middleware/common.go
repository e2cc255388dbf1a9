package middleware

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// accessLogFormat mirrors fiber's default line with the correlation identifier appended.
const accessLogFormat = "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:correlation_id} | ${error}\n"

// Config customises the middleware registration pipeline.
type Config struct {
	Logger       *zerolog.Logger
	AllowOrigins string
	// AccessLog writes one plain line per request to AccessLogOutput, stdout when unset.
	AccessLog       bool
	AccessLogOutput io.Writer
}

// Register attaches the middlewares shared by the REST and websocket surfaces.
// Correlation runs before observability so every metric and log line can carry the identifier.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}
	origins := cfg.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Logger != nil}))
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	if cfg.AccessLog {
		output := cfg.AccessLogOutput
		if output == nil {
			output = os.Stdout
		}
		app.Use(logger.New(logger.Config{Format: accessLogFormat, Output: output}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + correlationHeader,
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		ExposeHeaders: correlationHeader + ", Retry-After",
	}))
}
