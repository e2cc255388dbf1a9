package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// CommentGuard vets the locked comment before DeleteThread removes it. A non-nil error aborts the transaction.
type CommentGuard func(comment models.Comment) error

// CommentRepository persists comments and serves the floating feed.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (models.Comment, error)
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error)
	CountAttached(ctx context.Context, postIDs []uint) (map[uint]int64, error)
	ListFloating(ctx context.Context, now time.Time, limit, offset int) ([]models.Comment, error)
	DeleteThread(ctx context.Context, id uint, guard CommentGuard) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository constructs a GORM-backed comment repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var comments []models.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) CountAttached(ctx context.Context, postIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		PostID uint
		Total  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ? AND is_floating = ?", postIDs, false).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

// ListFloating returns detached comments whose own lifetime has not ended yet.
func (r *commentRepository) ListFloating(ctx context.Context, now time.Time, limit, offset int) ([]models.Comment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var comments []models.Comment
	if err := r.db.WithContext(ctx).
		Where("is_floating = ? AND expires_at > ?", true, now).
		Order("expires_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// DeleteThread removes the comment together with every reply below it and the votes cast on them.
// It returns the number of comments removed.
func (r *commentRepository) DeleteThread(ctx context.Context, id uint, guard CommentGuard) (int64, error) {
	var removed int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&root, id).Error; err != nil {
			return err
		}
		if guard != nil {
			if err := guard(root); err != nil {
				return err
			}
		}

		ids := []uint{root.ID}
		for frontier := ids; len(frontier) > 0; {
			var replies []uint
			if err := tx.Model(&models.Comment{}).Where("parent_comment_id IN ?", frontier).Pluck("id", &replies).Error; err != nil {
				return err
			}
			ids = append(ids, replies...)
			frontier = replies
		}

		if err := tx.Where("target_type = ? AND target_id IN ?", string(models.TargetComment), ids).
			Delete(&models.Vote{}).Error; err != nil {
			return err
		}

		result := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}
