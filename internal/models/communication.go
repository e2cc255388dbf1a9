package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat is a direct or group conversation between two or more users.
type Chat struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	IsGroup         bool         `gorm:"not null;default:false" json:"is_group"`
	Name            string       `gorm:"size:100" json:"name"`
	OwnerID         *uint        `gorm:"index" json:"owner_id"`
	LastMessageText string       `gorm:"size:255" json:"last_message_text"`
	LastMessageAt   time.Time    `gorm:"index" json:"last_message_at"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Members         []ChatMember `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

// ChatMember is a participant row; administrators are the members with IsAdmin set.
type ChatMember struct {
	ChatID   uint      `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	IsAdmin  bool      `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// IsOwner reports whether userID owns the chat.
func (c Chat) IsOwner(userID uint) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// Member returns the membership row for userID when present.
func (c Chat) Member(userID uint) (ChatMember, bool) {
	for _, member := range c.Members {
		if member.UserID == userID {
			return member, true
		}
	}
	return ChatMember{}, false
}

// IsParticipant reports whether userID is a member of the chat.
func (c Chat) IsParticipant(userID uint) bool {
	_, ok := c.Member(userID)
	return ok
}

// IsAdmin reports whether userID owns the chat or was promoted to administrator.
func (c Chat) IsAdmin(userID uint) bool {
	if c.IsOwner(userID) {
		return true
	}
	member, ok := c.Member(userID)
	return ok && member.IsAdmin
}

// ParticipantIDs lists member user ids in membership order.
func (c Chat) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(c.Members))
	for _, member := range c.Members {
		ids = append(ids, member.UserID)
	}
	return ids
}

// Message is an immutable chat message stored in the document store.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID      uint               `bson:"chat_id" json:"chat_id"`
	SenderID    uint               `bson:"sender_id" json:"sender_id"`
	Text        string             `bson:"text" json:"text"`
	Attachments []string           `bson:"attachments" json:"attachments"`
	Timestamp   time.Time          `bson:"timestamp" json:"timestamp"`
}
