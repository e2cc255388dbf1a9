package models

import "time"

// Post is a top-level publication with a decaying lifetime.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AuthorID     uint      `gorm:"index;not null" json:"author_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `gorm:"index;not null" json:"expires_at"`
	EchoCount    int       `gorm:"not null;default:0" json:"echo_count"`
	DisechoCount int       `gorm:"not null;default:0" json:"disecho_count"`
	IsFloating   bool      `gorm:"not null;default:false" json:"is_floating"`
}

// IsExpired reports whether the post lifetime ended at or before now.
func (p Post) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// VoteTarget projects the post onto the kind-independent vote view.
func (p Post) VoteTarget() VoteTarget {
	return VoteTarget{
		Kind:         TargetPost,
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		ExpiresAt:    p.ExpiresAt,
		EchoCount:    p.EchoCount,
		DisechoCount: p.DisechoCount,
	}
}

// Comment belongs to a post until the post expires; afterwards it floats with PostID unset.
type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PostID          *uint     `gorm:"index" json:"post_id"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment_id"`
	AuthorID        uint      `gorm:"index;not null" json:"author_id"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `gorm:"index;not null" json:"expires_at"`
	EchoCount       int       `gorm:"not null;default:0" json:"echo_count"`
	DisechoCount    int       `gorm:"not null;default:0" json:"disecho_count"`
	IsFloating      bool      `gorm:"index;not null;default:false" json:"is_floating"`
}

// IsExpired reports whether the comment lifetime ended at or before now.
func (c Comment) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Float detaches the comment from its post. There is no way back.
func (c *Comment) Float() {
	c.IsFloating = true
	c.PostID = nil
}

// VoteTarget projects the comment onto the kind-independent vote view.
func (c Comment) VoteTarget() VoteTarget {
	return VoteTarget{
		Kind:         TargetComment,
		ID:           c.ID,
		AuthorID:     c.AuthorID,
		ExpiresAt:    c.ExpiresAt,
		EchoCount:    c.EchoCount,
		DisechoCount: c.DisechoCount,
		IsFloating:   c.IsFloating,
		PostID:       c.PostID,
	}
}
