package service

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

const deletedUserName = "Deleted User"

// SenderProfiles resolves sender display info through a bounded LRU whose entries expire after ttl.
type SenderProfiles struct {
	users  repository.UserRepository
	cache  *expirable.LRU[uint, dto.SenderResponse]
	logger zerolog.Logger
}

// NewSenderProfiles constructs a cache holding at most size profiles.
func NewSenderProfiles(users repository.UserRepository, size int, ttl time.Duration, logger zerolog.Logger) *SenderProfiles {
	if size <= 0 {
		size = 1024
	}
	return &SenderProfiles{
		users:  users,
		cache:  expirable.NewLRU[uint, dto.SenderResponse](size, nil, ttl),
		logger: logger.With().Str("component", "sender_profiles").Logger(),
	}
}

// Resolve returns the display info for userID. Unknown users resolve to a placeholder that is not cached.
func (p *SenderProfiles) Resolve(ctx context.Context, userID uint) dto.SenderResponse {
	if profile, ok := p.cache.Get(userID); ok {
		return profile
	}

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			p.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to resolve sender profile")
		}
		return dto.SenderResponse{ID: userID, Username: deletedUserName, Nickname: deletedUserName}
	}

	nickname := user.Nickname
	if nickname == "" {
		nickname = user.Username
	}
	profile := dto.SenderResponse{
		ID:       user.ID,
		Username: user.Username,
		Nickname: nickname,
		Avatar:   user.Avatar,
	}
	p.cache.Add(userID, profile)
	return profile
}

func (p *SenderProfiles) Len() int {
	return p.cache.Len()
}
