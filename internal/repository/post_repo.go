package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// ErrPostNotExpired is returned when a post selected for sweeping was revived before it could be processed.
var ErrPostNotExpired = errors.New("post is no longer expired")

// PostGuard vets the locked post before FloatCommentsAndDelete removes it. A non-nil error aborts the transaction.
type PostGuard func(post models.Post) error

// ExpiredAt admits posts whose lifetime ended at or before now.
func ExpiredAt(now time.Time) PostGuard {
	return func(post models.Post) error {
		if !post.IsExpired(now) {
			return ErrPostNotExpired
		}
		return nil
	}
}

// PostRepository persists posts and runs the per-post expiry transaction.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (models.Post, error)
	ListLive(ctx context.Context, now time.Time, limit, offset int) ([]models.Post, error)
	ListExpiredIDs(ctx context.Context, now time.Time) ([]uint, error)
	FloatCommentsAndDelete(ctx context.Context, postID uint, guard PostGuard) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository constructs a GORM-backed post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (r *postRepository) ListLive(ctx context.Context, now time.Time, limit, offset int) ([]models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Where("expires_at > ?", now).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	return posts, nil
}

func (r *postRepository) ListExpiredIDs(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FloatCommentsAndDelete detaches every comment of the post, drops the votes cast on it and deletes
// the post in one transaction. The post row is locked before guard runs, so a vote landing between
// selection and processing is seen by an expiry guard and keeps the post alive.
func (r *postRepository) FloatCommentsAndDelete(ctx context.Context, postID uint, guard PostGuard) (int64, error) {
	var floated int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, postID).Error; err != nil {
			return err
		}
		if guard != nil {
			if err := guard(post); err != nil {
				return err
			}
		}

		var detached models.Comment
		detached.Float()
		result := tx.Model(&models.Comment{}).
			Where("post_id = ?", postID).
			Select("is_floating", "post_id").
			Updates(&detached)
		if result.Error != nil {
			return result.Error
		}
		floated = result.RowsAffected

		if err := tx.Where("target_type = ? AND target_id = ?", string(models.TargetPost), postID).
			Delete(&models.Vote{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Post{}, postID).Error
	})
	if err != nil {
		return 0, err
	}

	return floated, nil
}
