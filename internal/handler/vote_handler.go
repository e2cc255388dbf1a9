package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/models"
	"github.com/noah-isme/echo-go-api/internal/service"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

// VoteHandler exposes echo/disecho toggles and the caller's vote history.
type VoteHandler struct {
	service   service.VoteService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewVoteHandler constructs the handler.
func NewVoteHandler(service service.VoteService, validator *validator.Validate, logger zerolog.Logger) *VoteHandler {
	return &VoteHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "vote_handler").Logger(),
	}
}

// Register wires vote routes. Toggles pass through requireAuth and then limit.
func (h *VoteHandler) Register(router fiber.Router, requireAuth, limit fiber.Handler) {
	router.Post("/posts/:id/echo", requireAuth, limit, h.toggle(models.TargetPost, true))
	router.Post("/posts/:id/disecho", requireAuth, limit, h.toggle(models.TargetPost, false))
	router.Post("/comments/:id/echo", requireAuth, limit, h.toggle(models.TargetComment, true))
	router.Post("/comments/:id/disecho", requireAuth, limit, h.toggle(models.TargetComment, false))
	router.Post("/votes/echo", requireAuth, limit, h.toggleByType(true))
	router.Post("/votes/disecho", requireAuth, limit, h.toggleByType(false))
	router.Get("/votes/me", requireAuth, h.listMine)
}

func (h *VoteHandler) toggle(kind models.TargetKind, wantEcho bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseIDParam(c, "id")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		result, err := h.service.ToggleVote(requestContext(c), identityFromContext(c), kind, id, wantEcho)
		if err != nil {
			return sendServiceError(c, h.logger, err, "toggle vote")
		}
		return utils.SendSuccess(c, "vote "+result.Action, result)
	}
}

// toggleByType addresses the target through the request body. Polarity still comes from the route.
func (h *VoteHandler) toggleByType(wantEcho bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req dto.VoteTargetRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		if err := h.validator.Struct(req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		kind, err := models.ParseTargetKind(req.TargetType)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		result, err := h.service.ToggleVote(requestContext(c), identityFromContext(c), kind, req.TargetID, wantEcho)
		if err != nil {
			return sendServiceError(c, h.logger, err, "toggle vote")
		}
		return utils.SendSuccess(c, "vote "+result.Action, result)
	}
}

func (h *VoteHandler) listMine(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
	limit, offset, err := parsePage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	votes, err := h.service.ListMyVotes(requestContext(c), userID, limit, offset)
	if err != nil {
		return sendServiceError(c, h.logger, err, "list votes")
	}
	return utils.SendSuccess(c, "votes retrieved", votes)
}
