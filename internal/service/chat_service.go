package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/fanout"
	"github.com/noah-isme/echo-go-api/internal/models"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

// ChatService manages chats and their membership.
type ChatService interface {
	ListChats(ctx context.Context, userID uint, limit, offset int) ([]dto.ChatResponse, error)
	GetChat(ctx context.Context, chatID, userID uint) (dto.ChatResponse, error)
	CreateChat(ctx context.Context, creatorID uint, req dto.ChatCreateRequest) (dto.ChatResponse, error)
	AddMember(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error)
	RemoveMember(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error)
	PromoteAdmin(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error)
	DemoteAdmin(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error)
	Leave(ctx context.Context, chatID, userID uint) error
}

type chatService struct {
	chats     repository.ChatRepository
	users     repository.UserRepository
	bus       fanout.Bus
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatService constructs the membership service. Removal and leave evict live sessions through bus.
func NewChatService(chats repository.ChatRepository, users repository.UserRepository, bus fanout.Bus, validate *validator.Validate, logger zerolog.Logger) ChatService {
	return &chatService{
		chats:     chats,
		users:     users,
		bus:       bus,
		validator: validate,
		logger:    logger.With().Str("component", "chat_service").Logger(),
	}
}

func (s *chatService) ListChats(ctx context.Context, userID uint, limit, offset int) ([]dto.ChatResponse, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	chats, err := s.chats.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, translateStoreError(err, "chats")
	}
	return dto.NewChatResponseSlice(chats), nil
}

func (s *chatService) GetChat(ctx context.Context, chatID, userID uint) (dto.ChatResponse, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	if !chat.IsParticipant(userID) {
		return dto.ChatResponse{}, fmt.Errorf("%w: not a participant", ErrForbidden)
	}
	return dto.NewChatResponse(chat), nil
}

func (s *chatService) CreateChat(ctx context.Context, creatorID uint, req dto.ChatCreateRequest) (dto.ChatResponse, error) {
	if creatorID == 0 {
		return dto.ChatResponse{}, ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatResponse{}, validationError(err)
	}

	others := make([]uint, 0, len(req.ParticipantIDs))
	seen := map[uint]struct{}{creatorID: {}}
	for _, id := range req.ParticipantIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		others = append(others, id)
	}
	if len(others) == 0 {
		return dto.ChatResponse{}, fmt.Errorf("%w: a chat needs at least one other participant", ErrValidation)
	}

	found, err := s.users.CountExisting(ctx, others)
	if err != nil {
		return dto.ChatResponse{}, translateStoreError(err, "users")
	}
	if found != int64(len(others)) {
		return dto.ChatResponse{}, fmt.Errorf("%w: unknown participant", ErrNotFound)
	}

	chat := models.Chat{IsGroup: len(others)+1 > 2}
	chat.Members = append(chat.Members, models.ChatMember{UserID: creatorID, IsAdmin: chat.IsGroup})
	for _, id := range others {
		chat.Members = append(chat.Members, models.ChatMember{UserID: id})
	}
	if chat.IsGroup {
		owner := creatorID
		chat.OwnerID = &owner
		chat.Name = strings.TrimSpace(req.Name)
		if chat.Name == "" {
			chat.Name = "Group chat"
		}
	}

	if err := s.chats.Create(ctx, &chat); err != nil {
		return dto.ChatResponse{}, translateStoreError(err, "chat")
	}

	s.logger.Info().Uint("chat_id", chat.ID).Uint("creator_id", creatorID).Bool("is_group", chat.IsGroup).Msg("chat created")
	return dto.NewChatResponse(chat), nil
}

func (s *chatService) AddMember(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error) {
	chat, err := s.loadForAdmin(ctx, chatID, actorID)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	if chat.IsParticipant(userID) {
		return dto.ChatResponse{}, fmt.Errorf("%w: user already participates", ErrValidation)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return dto.ChatResponse{}, translateStoreError(err, "user")
	}

	if err := s.chats.AddMember(ctx, chatID, userID); err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return dto.ChatResponse{}, fmt.Errorf("%w: user already participates", ErrValidation)
		}
		return dto.ChatResponse{}, translateStoreError(err, "chat member")
	}

	s.logger.Info().Uint("chat_id", chatID).Uint("actor_id", actorID).Uint("user_id", userID).Msg("chat member added")
	return s.reload(ctx, chatID)
}

func (s *chatService) RemoveMember(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error) {
	if actorID == userID {
		return dto.ChatResponse{}, fmt.Errorf("%w: use leave to exit a chat", ErrValidation)
	}

	chat, err := s.loadForAdmin(ctx, chatID, actorID)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	target, ok := chat.Member(userID)
	if !ok {
		return dto.ChatResponse{}, fmt.Errorf("%w: user is not a participant", ErrNotFound)
	}
	if chat.IsOwner(userID) {
		return dto.ChatResponse{}, fmt.Errorf("%w: the owner cannot be removed", ErrForbidden)
	}
	if target.IsAdmin && !chat.IsOwner(actorID) {
		return dto.ChatResponse{}, fmt.Errorf("%w: only the owner removes administrators", ErrForbidden)
	}

	if err := s.chats.RemoveMember(ctx, chatID, userID); err != nil {
		return dto.ChatResponse{}, translateStoreError(err, "chat member")
	}
	s.evict(ctx, chatID, userID)

	s.logger.Info().Uint("chat_id", chatID).Uint("actor_id", actorID).Uint("user_id", userID).Msg("chat member removed")
	return s.reload(ctx, chatID)
}

func (s *chatService) PromoteAdmin(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error) {
	chat, err := s.loadForAdmin(ctx, chatID, actorID)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	target, ok := chat.Member(userID)
	if !ok {
		return dto.ChatResponse{}, fmt.Errorf("%w: user is not a participant", ErrNotFound)
	}
	if target.IsAdmin {
		return dto.NewChatResponse(chat), nil
	}

	if err := s.chats.SetAdmin(ctx, chatID, userID, true); err != nil {
		return dto.ChatResponse{}, translateStoreError(err, "chat member")
	}
	return s.reload(ctx, chatID)
}

func (s *chatService) DemoteAdmin(ctx context.Context, actorID, chatID, userID uint) (dto.ChatResponse, error) {
	chat, err := s.loadForAdmin(ctx, chatID, actorID)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	target, ok := chat.Member(userID)
	if !ok {
		return dto.ChatResponse{}, fmt.Errorf("%w: user is not a participant", ErrNotFound)
	}

	switch {
	case chat.IsOwner(userID) && !chat.IsOwner(actorID):
		return dto.ChatResponse{}, fmt.Errorf("%w: the owner cannot be demoted", ErrForbidden)
	case chat.IsOwner(userID):
		return dto.ChatResponse{}, fmt.Errorf("%w: the owner stays an administrator", ErrValidation)
	case target.IsAdmin && actorID != userID && !chat.IsOwner(actorID):
		return dto.ChatResponse{}, fmt.Errorf("%w: only the owner demotes other administrators", ErrForbidden)
	case !target.IsAdmin:
		return dto.NewChatResponse(chat), nil
	}

	if err := s.chats.SetAdmin(ctx, chatID, userID, false); err != nil {
		return dto.ChatResponse{}, translateStoreError(err, "chat member")
	}
	return s.reload(ctx, chatID)
}

func (s *chatService) Leave(ctx context.Context, chatID, userID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	deleted, err := s.chats.Leave(ctx, chatID, userID)
	if err != nil {
		return translateStoreError(err, "chat membership")
	}
	s.evict(ctx, chatID, userID)

	s.logger.Info().Uint("chat_id", chatID).Uint("user_id", userID).Bool("chat_deleted", deleted).Msg("chat left")
	return nil
}

func (s *chatService) load(ctx context.Context, chatID uint) (models.Chat, error) {
	chat, err := s.chats.GetWithMembers(ctx, chatID)
	if err != nil {
		return models.Chat{}, translateStoreError(err, "chat")
	}
	return chat, nil
}

// loadForAdmin loads a group chat that actorID may administer.
func (s *chatService) loadForAdmin(ctx context.Context, chatID, actorID uint) (models.Chat, error) {
	if actorID == 0 {
		return models.Chat{}, ErrUnauthenticated
	}
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if !chat.IsParticipant(actorID) || !chat.IsAdmin(actorID) {
		return models.Chat{}, fmt.Errorf("%w: administrator privileges required", ErrForbidden)
	}
	if !chat.IsGroup {
		return models.Chat{}, fmt.Errorf("%w: direct chats have fixed membership", ErrValidation)
	}
	return chat, nil
}

func (s *chatService) reload(ctx context.Context, chatID uint) (dto.ChatResponse, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	return dto.NewChatResponse(chat), nil
}

func (s *chatService) evict(ctx context.Context, chatID, userID uint) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Evict(ctx, fanout.ChatGroup(chatID), userID); err != nil {
		s.logger.Warn().Err(err).Uint("chat_id", chatID).Uint("user_id", userID).Msg("failed to evict chat sessions")
	}
}
