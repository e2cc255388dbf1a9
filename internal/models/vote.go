package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TargetKind names the table a vote points at.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// ErrUnknownTargetKind is returned when a target type string is neither post nor comment.
var ErrUnknownTargetKind = errors.New("unknown vote target kind")

// ParseTargetKind resolves a raw target type once at the API boundary.
func ParseTargetKind(raw string) (TargetKind, error) {
	switch kind := TargetKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case TargetPost, TargetComment:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTargetKind, raw)
	}
}

// Vote records one user's echo (true) or disecho (false) on a post or comment.
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_votes_user_target" json:"user_id"`
	TargetType TargetKind `gorm:"size:16;not null;uniqueIndex:idx_votes_user_target;index:idx_votes_target" json:"target_type"`
	TargetID   uint       `gorm:"not null;uniqueIndex:idx_votes_user_target;index:idx_votes_target" json:"target_id"`
	IsEcho     bool       `gorm:"not null" json:"is_echo"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// VoteTarget is the mutable lifetime state shared by posts and comments.
type VoteTarget struct {
	Kind         TargetKind
	ID           uint
	AuthorID     uint
	ExpiresAt    time.Time
	EchoCount    int
	DisechoCount int
	IsFloating   bool
	PostID       *uint
}

// IsExpired reports whether the target lifetime ended at or before now.
func (t VoteTarget) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
