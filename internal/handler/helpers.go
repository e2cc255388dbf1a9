package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/middleware"
	"github.com/noah-isme/echo-go-api/internal/service"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parsePage(c *fiber.Ctx) (limit, offset int, err error) {
	limit, err = parseQueryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err = parseQueryInt(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	id, ok := parseUintString(c.Params(key))
	if !ok {
		return 0, errors.New("invalid " + key)
	}
	return id, nil
}

func parseUintString(raw string) (uint, bool) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}

func userIDFromContext(c *fiber.Ctx) uint {
	if id, ok := c.Locals("user_id").(uint); ok {
		return id
	}
	return 0
}

func identityFromContext(c *fiber.Ctx) auth.Identity {
	return middleware.IdentityFromLocals(c.Locals)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// statusFromError maps the service error taxonomy onto HTTP statuses.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrExpired):
		return fiber.StatusGone
	case errors.Is(err, service.ErrInvalidTarget), errors.Is(err, service.ErrValidation), isValidationError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrServiceUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// sendServiceError writes the envelope for a service failure, hiding internal details on 500s.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, action string) error {
	status := statusFromError(err)
	if status >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Msg(action + " failed")
		if status == fiber.StatusServiceUnavailable {
			return utils.SendError(c, status, "service temporarily unavailable")
		}
		return utils.SendError(c, status, action+" failed")
	}
	return utils.SendError(c, status, err.Error())
}
