package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/service"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

// SweepHandler lets staff inspect and trigger expiry sweeps.
type SweepHandler struct {
	service service.SweepService
	logger  zerolog.Logger
}

// NewSweepHandler constructs the handler.
func NewSweepHandler(service service.SweepService, logger zerolog.Logger) *SweepHandler {
	return &SweepHandler{
		service: service,
		logger:  logger.With().Str("component", "sweep_handler").Logger(),
	}
}

// Register wires sweep routes onto a staff-only group.
func (h *SweepHandler) Register(router fiber.Router) {
	router.Get("", h.history)
	router.Post("", h.trigger)
}

func (h *SweepHandler) history(c *fiber.Ctx) error {
	limit, _, err := parsePage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	runs, err := h.service.History(requestContext(c), limit)
	if err != nil {
		return sendServiceError(c, h.logger, err, "list sweeps")
	}
	return utils.SendSuccess(c, "sweeps retrieved", runs)
}

func (h *SweepHandler) trigger(c *fiber.Ctx) error {
	run, err := h.service.Trigger(requestContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "trigger sweep")
	}

	requestLogger(h.logger, c).Info().
		Uint("actor_id", userIDFromContext(c)).
		Int("processed", run.Processed).
		Msg("manual sweep completed")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "sweep completed", run)
}
