package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// VoteMutation describes what a toggle does to the caller's vote row.
type VoteMutation int

const (
	VoteInsert VoteMutation = iota + 1
	VoteDelete
	VoteUpdate
)

// ToggleFunc decides the outcome of a toggle while the target row is locked.
// It mutates target in place and returns the vote row to write together with the mutation to apply.
type ToggleFunc func(target *models.VoteTarget, existing *models.Vote) (models.Vote, VoteMutation, error)

// VoteRepository runs vote toggles and exposes vote history.
type VoteRepository interface {
	Toggle(ctx context.Context, userID uint, kind models.TargetKind, targetID uint, fn ToggleFunc) (models.VoteTarget, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Vote, error)
}

// targetAccessor loads and saves one target kind inside a transaction.
type targetAccessor struct {
	load func(tx *gorm.DB, id uint) (models.VoteTarget, error)
	save func(tx *gorm.DB, target models.VoteTarget) error
}

var targetAccessors = map[models.TargetKind]targetAccessor{
	models.TargetPost: {
		load: func(tx *gorm.DB, id uint) (models.VoteTarget, error) {
			var post models.Post
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, id).Error; err != nil {
				return models.VoteTarget{}, err
			}
			return post.VoteTarget(), nil
		},
		save: func(tx *gorm.DB, target models.VoteTarget) error {
			return tx.Model(&models.Post{}).Where("id = ?", target.ID).Updates(map[string]interface{}{
				"expires_at":    target.ExpiresAt,
				"echo_count":    target.EchoCount,
				"disecho_count": target.DisechoCount,
			}).Error
		},
	},
	models.TargetComment: {
		load: func(tx *gorm.DB, id uint) (models.VoteTarget, error) {
			var comment models.Comment
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comment, id).Error; err != nil {
				return models.VoteTarget{}, err
			}
			return comment.VoteTarget(), nil
		},
		save: func(tx *gorm.DB, target models.VoteTarget) error {
			return tx.Model(&models.Comment{}).Where("id = ?", target.ID).Updates(map[string]interface{}{
				"expires_at":    target.ExpiresAt,
				"echo_count":    target.EchoCount,
				"disecho_count": target.DisechoCount,
			}).Error
		},
	},
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository constructs a GORM-backed vote repository.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Toggle locks the target row, hands the current state to fn and persists the result atomically.
func (r *voteRepository) Toggle(ctx context.Context, userID uint, kind models.TargetKind, targetID uint, fn ToggleFunc) (models.VoteTarget, error) {
	accessor, ok := targetAccessors[kind]
	if !ok {
		return models.VoteTarget{}, fmt.Errorf("%w: %q", models.ErrUnknownTargetKind, kind)
	}

	var result models.VoteTarget
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := accessor.load(tx, targetID)
		if err != nil {
			return err
		}

		var existing *models.Vote
		var current models.Vote
		err = tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, string(kind), targetID).
			Take(&current).Error
		switch {
		case err == nil:
			existing = &current
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		vote, mutation, err := fn(&target, existing)
		if err != nil {
			return err
		}

		if err := accessor.save(tx, target); err != nil {
			return err
		}

		switch mutation {
		case VoteInsert:
			vote.UserID = userID
			vote.TargetType = kind
			vote.TargetID = targetID
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		case VoteDelete:
			if err := tx.Delete(&models.Vote{}, vote.ID).Error; err != nil {
				return err
			}
		case VoteUpdate:
			if err := tx.Model(&models.Vote{}).Where("id = ?", vote.ID).Update("is_echo", vote.IsEcho).Error; err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown vote mutation %d", mutation)
		}

		result = target
		return nil
	})
	if err != nil {
		return models.VoteTarget{}, err
	}

	return result, nil
}

func (r *voteRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Vote, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var votes []models.Vote
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}
