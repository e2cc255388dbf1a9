package dto

import (
	"time"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// PostCreateRequest is the payload used to publish a post.
type PostCreateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=5000"`
}

// CommentCreateRequest is the payload used to comment on a post or reply to a comment.
type CommentCreateRequest struct {
	Text            string `json:"text" validate:"required,min=1,max=2000"`
	ParentCommentID *uint  `json:"parent_comment_id" validate:"omitempty,gt=0"`
}

// PostResponse is the serialized representation of a post.
type PostResponse struct {
	ID           uint      `json:"id"`
	AuthorID     uint      `json:"author_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	EchoCount    int       `json:"echo_count"`
	DisechoCount int       `json:"disecho_count"`
	CommentCount int64     `json:"comment_count"`
}

// NewPostResponse converts a post model into a DTO.
func NewPostResponse(post models.Post, commentCount int64) PostResponse {
	return PostResponse{
		ID:           post.ID,
		AuthorID:     post.AuthorID,
		Content:      post.Content,
		CreatedAt:    post.CreatedAt,
		ExpiresAt:    post.ExpiresAt,
		EchoCount:    post.EchoCount,
		DisechoCount: post.DisechoCount,
		CommentCount: commentCount,
	}
}

// CommentResponse is the serialized representation of a comment.
type CommentResponse struct {
	ID              uint      `json:"id"`
	PostID          *uint     `json:"post_id"`
	ParentCommentID *uint     `json:"parent_comment_id"`
	AuthorID        uint      `json:"author_id"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	EchoCount       int       `json:"echo_count"`
	DisechoCount    int       `json:"disecho_count"`
	IsFloating      bool      `json:"is_floating"`
}

// NewCommentResponse converts a comment model into a DTO.
func NewCommentResponse(comment models.Comment) CommentResponse {
	return CommentResponse{
		ID:              comment.ID,
		PostID:          comment.PostID,
		ParentCommentID: comment.ParentCommentID,
		AuthorID:        comment.AuthorID,
		Text:            comment.Text,
		CreatedAt:       comment.CreatedAt,
		ExpiresAt:       comment.ExpiresAt,
		EchoCount:       comment.EchoCount,
		DisechoCount:    comment.DisechoCount,
		IsFloating:      comment.IsFloating,
	}
}

// NewCommentResponseSlice converts comment models into DTOs.
func NewCommentResponseSlice(comments []models.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, NewCommentResponse(comment))
	}
	return out
}
