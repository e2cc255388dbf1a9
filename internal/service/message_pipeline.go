package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/fanout"
	"github.com/noah-isme/echo-go-api/internal/models"
	"github.com/noah-isme/echo-go-api/internal/observability"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

// Message entry points, used as the source label of sent message metrics.
const (
	SourceWebsocket = "websocket"
	SourceREST      = "rest"
)

type messageSourceKey struct{}

// WithMessageSource tags ctx with the entry point of a send.
func WithMessageSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, messageSourceKey{}, source)
}

func messageSource(ctx context.Context) string {
	if source, ok := ctx.Value(messageSourceKey{}).(string); ok && source != "" {
		return source
	}
	return SourceREST
}

// PipelineConfig tunes the message pipeline.
type PipelineConfig struct {
	SummaryLength int
	HistoryLimit  int
	StoreTimeout  time.Duration
}

// MessagePipeline persists chat messages before publishing them to live sessions.
type MessagePipeline interface {
	SendMessage(ctx context.Context, chatID, senderID uint, text string, attachments []string) (dto.MessageResponse, error)
	ListMessages(ctx context.Context, chatID, userID uint, limit int, beforeID string) ([]dto.MessageResponse, error)
}

type messagePipeline struct {
	chats     repository.ChatRepository
	store     repository.MessageStore
	bus       fanout.Bus
	profiles  *SenderProfiles
	cfg       PipelineConfig
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewMessagePipeline wires the pipeline to its stores, the fanout bus and the sender cache.
func NewMessagePipeline(chats repository.ChatRepository, store repository.MessageStore, bus fanout.Bus, profiles *SenderProfiles, cfg PipelineConfig, validate *validator.Validate, logger zerolog.Logger) MessagePipeline {
	if cfg.SummaryLength <= 0 {
		cfg.SummaryLength = 255
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}

	return &messagePipeline{
		chats:     chats,
		store:     store,
		bus:       bus,
		profiles:  profiles,
		cfg:       cfg,
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger.With().Str("component", "message_pipeline").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/echo-go-api/internal/service/messages"),
	}
}

func (p *messagePipeline) SendMessage(ctx context.Context, chatID, senderID uint, text string, attachments []string) (dto.MessageResponse, error) {
	ctx, span := p.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.Int64("chat.id", int64(chatID)),
		attribute.Int64("chat.sender_id", int64(senderID)),
	))
	defer span.End()

	if err := p.requireParticipant(ctx, chatID, senderID); err != nil {
		return dto.MessageResponse{}, err
	}

	req := dto.ChatSendRequest{Text: text, Attachments: attachments}
	if err := p.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, validationError(err)
	}
	clean := sanitizeText(p.sanitizer, req.Text)
	if clean == "" {
		return dto.MessageResponse{}, fmt.Errorf("%w: message empty after sanitization", ErrValidation)
	}

	message := models.Message{
		ID:          primitive.NewObjectID(),
		ChatID:      chatID,
		SenderID:    senderID,
		Text:        clean,
		Attachments: append([]string{}, req.Attachments...),
		Timestamp:   time.Now().UTC(),
	}

	insertCtx, cancel := p.withStoreTimeout(ctx)
	err := p.store.Insert(insertCtx, &message)
	cancel()
	if err != nil {
		span.RecordError(err)
		p.logger.Error().Err(err).Uint("chat_id", chatID).Msg("failed to persist chat message")
		return dto.MessageResponse{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	observability.ChatMessagesSent().WithLabelValues(messageSource(ctx)).Inc()

	summaryCtx, cancel := p.withStoreTimeout(ctx)
	if err := p.chats.UpdateLastMessage(summaryCtx, chatID, truncateRunes(message.Text, p.cfg.SummaryLength), message.Timestamp); err != nil {
		p.logger.Warn().Err(err).Uint("chat_id", chatID).Str("message_id", message.ID.Hex()).Msg("failed to update chat summary")
	}
	cancel()

	response := dto.NewMessageResponse(message, p.resolveSender(ctx, senderID))
	payload, err := json.Marshal(response)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", response.ID).Msg("failed to encode chat message")
		return response, nil
	}
	if err := p.bus.Publish(ctx, fanout.ChatGroup(chatID), payload); err != nil {
		p.logger.Warn().Err(err).Uint("chat_id", chatID).Str("message_id", response.ID).Msg("failed to publish chat message")
	}

	return response, nil
}

func (p *messagePipeline) ListMessages(ctx context.Context, chatID, userID uint, limit int, beforeID string) ([]dto.MessageResponse, error) {
	before := primitive.NilObjectID
	if trimmed := strings.TrimSpace(beforeID); trimmed != "" {
		parsed, err := primitive.ObjectIDFromHex(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid before_id", ErrValidation)
		}
		before = parsed
	}
	if limit <= 0 {
		limit = p.cfg.HistoryLimit
	}
	if limit > 100 {
		limit = 100
	}

	if err := p.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}

	listCtx, cancel := p.withStoreTimeout(ctx)
	defer cancel()
	messages, err := p.store.ListByChat(listCtx, chatID, before, limit)
	if err != nil {
		p.logger.Error().Err(err).Uint("chat_id", chatID).Msg("failed to load chat history")
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	out := make([]dto.MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, dto.NewMessageResponse(message, p.resolveSender(ctx, message.SenderID)))
	}
	return out, nil
}

func (p *messagePipeline) requireParticipant(ctx context.Context, chatID, userID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	checkCtx, cancel := p.withStoreTimeout(ctx)
	defer cancel()
	ok, err := p.chats.IsParticipant(checkCtx, chatID, userID)
	if err != nil {
		return translateStoreError(err, "chat")
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not a participant of chat %d", ErrForbidden, userID, chatID)
	}
	return nil
}

func (p *messagePipeline) resolveSender(ctx context.Context, userID uint) dto.SenderResponse {
	lookupCtx, cancel := p.withStoreTimeout(ctx)
	defer cancel()
	return p.profiles.Resolve(lookupCtx, userID)
}

func (p *messagePipeline) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.StoreTimeout)
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
