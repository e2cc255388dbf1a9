package dto

import (
	"time"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// Vote toggle outcomes.
const (
	VoteActionInsert = "insert"
	VoteActionDelete = "delete"
	VoteActionFlip   = "flip"
)

// VoteResult describes the target after a toggle together with the caller's resulting vote.
type VoteResult struct {
	TargetType   models.TargetKind `json:"target_type"`
	TargetID     uint              `json:"target_id"`
	Action       string            `json:"action"`
	Voted        bool              `json:"voted"`
	IsEcho       *bool             `json:"is_echo"`
	EchoCount    int               `json:"echo_count"`
	DisechoCount int               `json:"disecho_count"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// NewVoteResult builds the toggle response. A nil vote means the caller no longer votes on the target.
func NewVoteResult(target models.VoteTarget, action string, vote *models.Vote) VoteResult {
	result := VoteResult{
		TargetType:   target.Kind,
		TargetID:     target.ID,
		Action:       action,
		EchoCount:    target.EchoCount,
		DisechoCount: target.DisechoCount,
		ExpiresAt:    target.ExpiresAt,
	}
	if vote != nil {
		isEcho := vote.IsEcho
		result.Voted = true
		result.IsEcho = &isEcho
	}
	return result
}

// VoteResponse is one entry of the caller's vote history.
type VoteResponse struct {
	TargetType models.TargetKind `json:"target_type"`
	TargetID   uint              `json:"target_id"`
	IsEcho     bool              `json:"is_echo"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewVoteResponseSlice converts vote models into DTOs.
func NewVoteResponseSlice(votes []models.Vote) []VoteResponse {
	out := make([]VoteResponse, 0, len(votes))
	for _, vote := range votes {
		out = append(out, VoteResponse{
			TargetType: vote.TargetType,
			TargetID:   vote.TargetID,
			IsEcho:     vote.IsEcho,
			UpdatedAt:  vote.UpdatedAt,
		})
	}
	return out
}

// VoteTargetRequest addresses a target by type name for clients that do not use the per-kind routes.
type VoteTargetRequest struct {
	TargetType string `json:"target_type" validate:"required"`
	TargetID   uint   `json:"target_id" validate:"required,gt=0"`
}
