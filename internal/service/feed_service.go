package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/config"
	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/models"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

// FeedService publishes posts and comments and serves the live and floating feeds.
type FeedService interface {
	CreatePost(ctx context.Context, identity auth.Identity, req dto.PostCreateRequest) (dto.PostResponse, error)
	ListPosts(ctx context.Context, limit, offset int) ([]dto.PostResponse, error)
	GetPost(ctx context.Context, identity auth.Identity, id uint) (dto.PostResponse, error)
	CreateComment(ctx context.Context, identity auth.Identity, postID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error)
	ListComments(ctx context.Context, identity auth.Identity, postID uint, limit, offset int) ([]dto.CommentResponse, error)
	ListFloating(ctx context.Context, limit, offset int) ([]dto.CommentResponse, error)
	DeletePost(ctx context.Context, identity auth.Identity, id uint) error
	DeleteComment(ctx context.Context, identity auth.Identity, id uint) error
}

type feedService struct {
	posts     repository.PostRepository
	comments  repository.CommentRepository
	lifetime  config.LifetimeConfig
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewFeedService constructs the feed service.
func NewFeedService(posts repository.PostRepository, comments repository.CommentRepository, lifetime config.LifetimeConfig, validate *validator.Validate, logger zerolog.Logger) FeedService {
	return &feedService{
		posts:     posts,
		comments:  comments,
		lifetime:  lifetime,
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger.With().Str("component", "feed_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *feedService) CreatePost(ctx context.Context, identity auth.Identity, req dto.PostCreateRequest) (dto.PostResponse, error) {
	if identity.Anonymous() {
		return dto.PostResponse{}, ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.PostResponse{}, validationError(err)
	}

	content := sanitizeText(s.sanitizer, req.Content)
	if content == "" {
		return dto.PostResponse{}, fmt.Errorf("%w: content empty after sanitization", ErrValidation)
	}

	now := s.now()
	post := models.Post{
		AuthorID:  identity.UserID,
		Content:   content,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime.Post),
	}
	if err := s.posts.Create(ctx, &post); err != nil {
		return dto.PostResponse{}, translateStoreError(err, "post")
	}

	s.logger.Info().Uint("post_id", post.ID).Uint("author_id", post.AuthorID).Msg("post created")
	return dto.NewPostResponse(post, 0), nil
}

func (s *feedService) ListPosts(ctx context.Context, limit, offset int) ([]dto.PostResponse, error) {
	posts, err := s.posts.ListLive(ctx, s.now(), limit, offset)
	if err != nil {
		return nil, translateStoreError(err, "posts")
	}

	ids := make([]uint, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	counts, err := s.comments.CountAttached(ctx, ids)
	if err != nil {
		return nil, translateStoreError(err, "comment counts")
	}

	out := make([]dto.PostResponse, 0, len(posts))
	for _, post := range posts {
		out = append(out, dto.NewPostResponse(post, counts[post.ID]))
	}
	return out, nil
}

func (s *feedService) GetPost(ctx context.Context, identity auth.Identity, id uint) (dto.PostResponse, error) {
	post, err := s.visiblePost(ctx, identity, id)
	if err != nil {
		return dto.PostResponse{}, err
	}

	counts, err := s.comments.CountAttached(ctx, []uint{post.ID})
	if err != nil {
		return dto.PostResponse{}, translateStoreError(err, "comment counts")
	}
	return dto.NewPostResponse(post, counts[post.ID]), nil
}

func (s *feedService) CreateComment(ctx context.Context, identity auth.Identity, postID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error) {
	if identity.Anonymous() {
		return dto.CommentResponse{}, ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.CommentResponse{}, validationError(err)
	}

	post, err := s.visiblePost(ctx, identity, postID)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	if req.ParentCommentID != nil {
		parent, err := s.comments.GetByID(ctx, *req.ParentCommentID)
		if err != nil {
			return dto.CommentResponse{}, translateStoreError(err, "parent comment")
		}
		if parent.IsFloating {
			return dto.CommentResponse{}, fmt.Errorf("%w: cannot reply to a floating comment", ErrInvalidTarget)
		}
		if parent.PostID == nil || *parent.PostID != post.ID {
			return dto.CommentResponse{}, fmt.Errorf("%w: parent comment belongs to another post", ErrInvalidTarget)
		}
	}

	text := sanitizeText(s.sanitizer, req.Text)
	if text == "" {
		return dto.CommentResponse{}, fmt.Errorf("%w: text empty after sanitization", ErrValidation)
	}

	now := s.now()
	attachedTo := post.ID
	comment := models.Comment{
		PostID:          &attachedTo,
		ParentCommentID: req.ParentCommentID,
		AuthorID:        identity.UserID,
		Text:            text,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.lifetime.Comment),
	}
	if err := s.comments.Create(ctx, &comment); err != nil {
		return dto.CommentResponse{}, translateStoreError(err, "comment")
	}

	return dto.NewCommentResponse(comment), nil
}

// ListComments serves a post's attached comments even once the post expired; only a missing post is an error.
func (s *feedService) ListComments(ctx context.Context, identity auth.Identity, postID uint, limit, offset int) ([]dto.CommentResponse, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, translateStoreError(err, "post")
	}

	comments, err := s.comments.ListByPost(ctx, postID, limit, offset)
	if err != nil {
		return nil, translateStoreError(err, "comments")
	}
	return dto.NewCommentResponseSlice(comments), nil
}

func (s *feedService) ListFloating(ctx context.Context, limit, offset int) ([]dto.CommentResponse, error) {
	comments, err := s.comments.ListFloating(ctx, s.now(), limit, offset)
	if err != nil {
		return nil, translateStoreError(err, "floating comments")
	}
	return dto.NewCommentResponseSlice(comments), nil
}

// DeletePost removes a post on behalf of its author or staff. Its comments float exactly as they do on expiry.
func (s *feedService) DeletePost(ctx context.Context, identity auth.Identity, id uint) error {
	if identity.Anonymous() {
		return ErrUnauthenticated
	}

	floated, err := s.posts.FloatCommentsAndDelete(ctx, id, func(post models.Post) error {
		return ownerOrStaff(identity, post.AuthorID, "post", post.ID)
	})
	if err != nil {
		return translateStoreError(err, "post")
	}

	s.logger.Info().Uint("post_id", id).Uint("user_id", identity.UserID).Int64("floated", floated).Msg("post deleted")
	return nil
}

// DeleteComment removes a comment and its replies on behalf of the comment author or staff.
func (s *feedService) DeleteComment(ctx context.Context, identity auth.Identity, id uint) error {
	if identity.Anonymous() {
		return ErrUnauthenticated
	}

	removed, err := s.comments.DeleteThread(ctx, id, func(comment models.Comment) error {
		return ownerOrStaff(identity, comment.AuthorID, "comment", comment.ID)
	})
	if err != nil {
		return translateStoreError(err, "comment")
	}

	s.logger.Info().Uint("comment_id", id).Uint("user_id", identity.UserID).Int64("removed", removed).Msg("comment deleted")
	return nil
}

func ownerOrStaff(identity auth.Identity, authorID uint, what string, id uint) error {
	if identity.IsStaff || identity.UserID == authorID {
		return nil
	}
	return fmt.Errorf("%w: %s %d belongs to another user", ErrForbidden, what, id)
}

// visiblePost loads a post, hiding expired ones from everyone but staff.
func (s *feedService) visiblePost(ctx context.Context, identity auth.Identity, id uint) (models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return models.Post{}, translateStoreError(err, "post")
	}
	if post.IsExpired(s.now()) && !identity.IsStaff {
		return models.Post{}, fmt.Errorf("%w: post %d", ErrExpired, id)
	}
	return post, nil
}
