package dto

import (
	"time"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// ChatCreateRequest opens a direct chat (one other participant) or a group chat.
type ChatCreateRequest struct {
	Name           string `json:"name" validate:"omitempty,max=100"`
	ParticipantIDs []uint `json:"participant_ids" validate:"required,min=1,max=256,dive,gt=0"`
}

// ChatMemberRequest names the user affected by a membership change.
type ChatMemberRequest struct {
	UserID uint `json:"user_id" validate:"required,gt=0"`
}

// ChatSendRequest is the inbound chat frame and the REST send payload.
type ChatSendRequest struct {
	Text        string   `json:"text" validate:"required,min=1,max=4000"`
	Attachments []string `json:"attachments" validate:"omitempty,max=10,dive,url"`
}

// ChatHistoryQuery pages backwards through a chat's messages.
type ChatHistoryQuery struct {
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	BeforeID string `query:"before_id" validate:"omitempty,len=24,hexadecimal"`
}

// ChatResponse is the serialized representation of a chat.
type ChatResponse struct {
	ID              uint      `json:"id"`
	IsGroup         bool      `json:"is_group"`
	Name            string    `json:"name"`
	OwnerID         *uint     `json:"owner_id"`
	Participants    []uint    `json:"participants"`
	Admins          []uint    `json:"admins"`
	LastMessageText string    `json:"last_message_text"`
	LastMessageAt   time.Time `json:"last_message_at"`
}

// NewChatResponse converts a chat with preloaded members into a DTO.
func NewChatResponse(chat models.Chat) ChatResponse {
	admins := make([]uint, 0)
	for _, member := range chat.Members {
		if member.IsAdmin {
			admins = append(admins, member.UserID)
		}
	}
	return ChatResponse{
		ID:              chat.ID,
		IsGroup:         chat.IsGroup,
		Name:            chat.Name,
		OwnerID:         chat.OwnerID,
		Participants:    chat.ParticipantIDs(),
		Admins:          admins,
		LastMessageText: chat.LastMessageText,
		LastMessageAt:   chat.LastMessageAt,
	}
}

// NewChatResponseSlice converts chats into DTOs.
func NewChatResponseSlice(chats []models.Chat) []ChatResponse {
	out := make([]ChatResponse, 0, len(chats))
	for _, chat := range chats {
		out = append(out, NewChatResponse(chat))
	}
	return out
}

// SenderResponse is the display information attached to outbound messages.
type SenderResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// MessageResponse mirrors the stored message plus resolved sender display fields.
type MessageResponse struct {
	ID          string         `json:"id"`
	ChatID      uint           `json:"chat_id"`
	SenderID    uint           `json:"sender_id"`
	Sender      SenderResponse `json:"sender"`
	Text        string         `json:"text"`
	Attachments []string       `json:"attachments"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewMessageResponse converts a stored message and its sender into a DTO.
func NewMessageResponse(message models.Message, sender SenderResponse) MessageResponse {
	attachments := message.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return MessageResponse{
		ID:          message.ID.Hex(),
		ChatID:      message.ChatID,
		SenderID:    message.SenderID,
		Sender:      sender,
		Text:        message.Text,
		Attachments: attachments,
		Timestamp:   message.Timestamp,
	}
}
