package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// ErrAlreadyMember is returned when adding a user that already participates in the chat.
var ErrAlreadyMember = errors.New("user already participates in chat")

// ChatRepository persists chats, their membership and the denormalised last message summary.
type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetWithMembers(ctx context.Context, id uint) (models.Chat, error)
	ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	AddMember(ctx context.Context, chatID, userID uint) error
	RemoveMember(ctx context.Context, chatID, userID uint) error
	SetAdmin(ctx context.Context, chatID, userID uint, isAdmin bool) error
	Leave(ctx context.Context, chatID, userID uint) (bool, error)
	UpdateLastMessage(ctx context.Context, chatID uint, text string, at time.Time) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *chatRepository) GetWithMembers(ctx context.Context, id uint) (models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC").Order("user_id ASC")
		}).
		First(&chat, id).Error
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Chat, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id AND chat_members.user_id = ?", userID).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC").Order("user_id ASC")
		}).
		Order("chats.last_message_at DESC").
		Order("chats.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

func (r *chatRepository) AddMember(ctx context.Context, chatID, userID uint) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ChatMember{ChatID: chatID, UserID: userID})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyMember
	}
	return nil
}

func (r *chatRepository) RemoveMember(ctx context.Context, chatID, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&models.ChatMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *chatRepository) SetAdmin(ctx context.Context, chatID, userID uint, isAdmin bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("is_admin", isAdmin)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Leave removes userID from the chat. An owner hands the chat to the longest-serving admin,
// or the longest-serving member when there is no admin. The chat is deleted once nobody is left,
// which is reported through the boolean result.
func (r *chatRepository) Leave(ctx context.Context, chatID, userID uint) (bool, error) {
	deleted := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&chat, chatID).Error; err != nil {
			return err
		}

		result := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).Delete(&models.ChatMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var remaining []models.ChatMember
		if err := tx.Where("chat_id = ?", chatID).
			Order("is_admin DESC").
			Order("joined_at ASC").
			Order("user_id ASC").
			Find(&remaining).Error; err != nil {
			return err
		}

		if len(remaining) == 0 {
			deleted = true
			return tx.Delete(&models.Chat{}, chatID).Error
		}

		if !chat.IsOwner(userID) {
			return nil
		}

		heir := remaining[0]
		if err := tx.Model(&models.Chat{}).Where("id = ?", chatID).Update("owner_id", heir.UserID).Error; err != nil {
			return err
		}
		if chat.IsGroup && !heir.IsAdmin {
			return tx.Model(&models.ChatMember{}).
				Where("chat_id = ? AND user_id = ?", chatID, heir.UserID).
				Update("is_admin", true).Error
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

func (r *chatRepository) UpdateLastMessage(ctx context.Context, chatID uint, text string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]interface{}{
			"last_message_text": text,
			"last_message_at":   at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
