package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/service"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

// FeedHandler exposes posts, comments and the floating feed.
type FeedHandler struct {
	service service.FeedService
	logger  zerolog.Logger
}

// NewFeedHandler constructs the handler.
func NewFeedHandler(service service.FeedService, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		service: service,
		logger:  logger.With().Str("component", "feed_handler").Logger(),
	}
}

// Register wires feed routes. Writes go through requireAuth.
func (h *FeedHandler) Register(router fiber.Router, requireAuth fiber.Handler) {
	router.Get("/posts", h.listPosts)
	router.Post("/posts", requireAuth, h.createPost)
	router.Get("/posts/:id", h.getPost)
	router.Delete("/posts/:id", requireAuth, h.deletePost)
	router.Get("/posts/:id/comments", h.listComments)
	router.Post("/posts/:id/comments", requireAuth, h.createComment)
	router.Delete("/comments/:id", requireAuth, h.deleteComment)
	router.Get("/comments/floating", h.listFloating)
}

func (h *FeedHandler) listPosts(c *fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	posts, err := h.service.ListPosts(requestContext(c), limit, offset)
	if err != nil {
		return sendServiceError(c, h.logger, err, "list posts")
	}
	return utils.SendSuccess(c, "posts retrieved", posts)
}

func (h *FeedHandler) createPost(c *fiber.Ctx) error {
	var req dto.PostCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	post, err := h.service.CreatePost(requestContext(c), identityFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "create post")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "post created", post)
}

func (h *FeedHandler) getPost(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	post, err := h.service.GetPost(requestContext(c), identityFromContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "get post")
	}
	return utils.SendSuccess(c, "post retrieved", post)
}

func (h *FeedHandler) listComments(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	limit, offset, err := parsePage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	comments, err := h.service.ListComments(requestContext(c), identityFromContext(c), id, limit, offset)
	if err != nil {
		return sendServiceError(c, h.logger, err, "list comments")
	}
	return utils.SendSuccess(c, "comments retrieved", comments)
}

func (h *FeedHandler) createComment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.CommentCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	comment, err := h.service.CreateComment(requestContext(c), identityFromContext(c), id, req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "create comment")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment created", comment)
}

func (h *FeedHandler) listFloating(c *fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	comments, err := h.service.ListFloating(requestContext(c), limit, offset)
	if err != nil {
		return sendServiceError(c, h.logger, err, "list floating comments")
	}
	return utils.SendSuccess(c, "floating comments retrieved", comments)
}

func (h *FeedHandler) deletePost(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeletePost(requestContext(c), identityFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err, "delete post")
	}
	return utils.SendSuccess(c, "post deleted", nil)
}

func (h *FeedHandler) deleteComment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteComment(requestContext(c), identityFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err, "delete comment")
	}
	return utils.SendSuccess(c, "comment deleted", nil)
}
