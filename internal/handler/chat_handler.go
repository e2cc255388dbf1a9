package handler

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/service"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

// ChatHandler wires chat endpoints including the websocket upgrade.
type ChatHandler struct {
	chats     service.ChatService
	pipeline  service.MessagePipeline
	sessions  *service.SessionManager
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(chats service.ChatService, pipeline service.MessagePipeline, sessions *service.SessionManager, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chats:     chats,
		pipeline:  pipeline,
		sessions:  sessions,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds the REST chat routes under an authenticated group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Post("/:id/members", h.addMember)
	router.Delete("/:id/members/:userId", h.removeMember)
	router.Post("/:id/admins/:userId", h.promote)
	router.Delete("/:id/admins/:userId", h.demote)
	router.Post("/:id/leave", h.leave)
	router.Get("/:id/messages", h.history)
	router.Post("/:id/messages", h.send)
}

// RegisterSocket binds the websocket endpoint. Identity comes from OptionalJWT or the token query parameter.
func (h *ChatHandler) RegisterSocket(router fiber.Router) {
	router.Use("/chat", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("identity", identityFromContext(c))
		c.Locals("request_ctx", requestContext(c))
		return c.Next()
	})
	router.Get("/chat/:id", websocket.New(h.handleConnection))
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	chatID, _ := parseUintString(conn.Params("id"))
	identity, _ := conn.Locals("identity").(auth.Identity)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	correlation, _ := conn.Locals("correlation_id").(string)

	reason := h.sessions.Serve(conn, service.SessionRequest{
		ChatID:        chatID,
		Identity:      identity,
		Token:         strings.TrimSpace(conn.Query("token")),
		CorrelationID: correlation,
		Context:       service.WithMessageSource(baseCtx, service.SourceWebsocket),
	})

	h.logger.Debug().
		Uint("chat_id", chatID).
		Str("correlation_id", correlation).
		Int("close_code", reason.Code).
		Msg("chat websocket closed")
}

func (h *ChatHandler) list(c *fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	chats, err := h.chats.ListChats(requestContext(c), userIDFromContext(c), limit, offset)
	if err != nil {
		return sendServiceError(c, h.logger, err, "list chats")
	}
	return utils.SendSuccess(c, "chats retrieved", chats)
}

func (h *ChatHandler) create(c *fiber.Ctx) error {
	var req dto.ChatCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	chat, err := h.chats.CreateChat(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "create chat")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "chat created", chat)
}

func (h *ChatHandler) get(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	chat, err := h.chats.GetChat(requestContext(c), chatID, userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "get chat")
	}
	return utils.SendSuccess(c, "chat retrieved", chat)
}

func (h *ChatHandler) addMember(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.ChatMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	chat, err := h.chats.AddMember(requestContext(c), userIDFromContext(c), chatID, req.UserID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "add member")
	}
	return utils.SendSuccess(c, "member added", chat)
}

type membershipAction func(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error)

func (h *ChatHandler) membership(c *fiber.Ctx, action membershipAction, name, message string) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	userID, err := parseIDParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	chat, err := action(requestContext(c), userIDFromContext(c), chatID, userID)
	if err != nil {
		return sendServiceError(c, h.logger, err, name)
	}

	requestLogger(h.logger, c).Info().
		Uint("chat_id", chatID).
		Uint("actor_id", userIDFromContext(c)).
		Uint("user_id", userID).
		Msg(message)
	return utils.SendSuccess(c, message, chat)
}

func (h *ChatHandler) removeMember(c *fiber.Ctx) error {
	return h.membership(c, h.chats.RemoveMember, "remove member", "member removed")
}

func (h *ChatHandler) promote(c *fiber.Ctx) error {
	return h.membership(c, h.chats.PromoteAdmin, "promote admin", "admin promoted")
}

func (h *ChatHandler) demote(c *fiber.Ctx) error {
	return h.membership(c, h.chats.DemoteAdmin, "demote admin", "admin demoted")
}

func (h *ChatHandler) leave(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.chats.Leave(requestContext(c), chatID, userIDFromContext(c)); err != nil {
		return sendServiceError(c, h.logger, err, "leave chat")
	}
	return utils.SendSuccess(c, "chat left", nil)
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var query dto.ChatHistoryQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validator.Struct(query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	messages, err := h.pipeline.ListMessages(requestContext(c), chatID, userIDFromContext(c), query.Limit, query.BeforeID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "chat history")
	}
	return utils.SendSuccess(c, "chat history", messages)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	chatID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.ChatSendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := service.WithMessageSource(requestContext(c), service.SourceREST)
	message, err := h.pipeline.SendMessage(ctx, chatID, userIDFromContext(c), req.Text, req.Attachments)
	if err != nil {
		return sendServiceError(c, h.logger, err, "send message")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

