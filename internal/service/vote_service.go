package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/config"
	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/models"
	"github.com/noah-isme/echo-go-api/internal/observability"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

// LifetimePolicy is how far one echo pushes a target's expiry and how far one disecho pulls it back.
type LifetimePolicy struct {
	Extend time.Duration
	Reduce time.Duration
}

// LifetimePolicies builds the per-kind policies from configuration.
func LifetimePolicies(cfg config.LifetimeConfig) map[models.TargetKind]LifetimePolicy {
	return map[models.TargetKind]LifetimePolicy{
		models.TargetPost:    {Extend: cfg.PostEchoExtend, Reduce: cfg.PostDisechoReduce},
		models.TargetComment: {Extend: cfg.CommentEchoExtend, Reduce: cfg.CommentDisechoReduce},
	}
}

// VoteService toggles echoes and disechoes.
type VoteService interface {
	ToggleVote(ctx context.Context, identity auth.Identity, kind models.TargetKind, targetID uint, wantEcho bool) (dto.VoteResult, error)
	ListMyVotes(ctx context.Context, userID uint, limit, offset int) ([]dto.VoteResponse, error)
}

type voteService struct {
	repo     repository.VoteRepository
	policies map[models.TargetKind]LifetimePolicy
	timeout  time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewVoteService constructs the vote engine. timeout bounds every store transaction.
func NewVoteService(repo repository.VoteRepository, policies map[models.TargetKind]LifetimePolicy, timeout time.Duration, logger zerolog.Logger) VoteService {
	return &voteService{
		repo:     repo,
		policies: policies,
		timeout:  timeout,
		logger:   logger.With().Str("component", "vote_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/echo-go-api/internal/service/vote"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *voteService) ToggleVote(ctx context.Context, identity auth.Identity, kind models.TargetKind, targetID uint, wantEcho bool) (dto.VoteResult, error) {
	if identity.Anonymous() {
		return dto.VoteResult{}, ErrUnauthenticated
	}
	policy, ok := s.policies[kind]
	if !ok {
		return dto.VoteResult{}, ErrInvalidTarget
	}

	ctx, span := s.tracer.Start(ctx, "vote.toggle", trace.WithAttributes(
		attribute.String("vote.target_type", string(kind)),
		attribute.Int64("vote.target_id", int64(targetID)),
		attribute.Bool("vote.is_echo", wantEcho),
	))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	now := s.now()
	var (
		action    string
		finalVote *models.Vote
	)

	target, err := s.repo.Toggle(ctx, identity.UserID, kind, targetID, func(target *models.VoteTarget, existing *models.Vote) (models.Vote, repository.VoteMutation, error) {
		if target.Kind == models.TargetComment && target.IsFloating {
			return models.Vote{}, 0, ErrInvalidTarget
		}
		if target.IsExpired(now) && !identity.IsStaff {
			return models.Vote{}, 0, ErrExpired
		}

		switch {
		case existing == nil:
			applyVote(target, policy, wantEcho, 1)
			vote := models.Vote{IsEcho: wantEcho}
			action, finalVote = dto.VoteActionInsert, &vote
			return vote, repository.VoteInsert, nil
		case existing.IsEcho == wantEcho:
			applyVote(target, policy, existing.IsEcho, -1)
			action, finalVote = dto.VoteActionDelete, nil
			return *existing, repository.VoteDelete, nil
		default:
			applyVote(target, policy, existing.IsEcho, -1)
			applyVote(target, policy, wantEcho, 1)
			vote := *existing
			vote.IsEcho = wantEcho
			action, finalVote = dto.VoteActionFlip, &vote
			return vote, repository.VoteUpdate, nil
		}
	})
	if err != nil {
		span.RecordError(err)
		return dto.VoteResult{}, translateStoreError(err, string(kind))
	}

	observability.VotesToggled().WithLabelValues(string(kind), action).Inc()
	s.logger.Debug().
		Uint("user_id", identity.UserID).
		Str("target_type", string(kind)).
		Uint("target_id", targetID).
		Str("action", action).
		Time("expires_at", target.ExpiresAt).
		Msg("vote toggled")

	return dto.NewVoteResult(target, action, finalVote), nil
}

func (s *voteService) ListMyVotes(ctx context.Context, userID uint, limit, offset int) ([]dto.VoteResponse, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	votes, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, translateStoreError(err, "votes")
	}
	return dto.NewVoteResponseSlice(votes), nil
}

// applyVote adds (sign 1) or removes (sign -1) one vote of the given polarity.
func applyVote(target *models.VoteTarget, policy LifetimePolicy, echo bool, sign int) {
	if echo {
		target.EchoCount += sign
		target.ExpiresAt = target.ExpiresAt.Add(time.Duration(sign) * policy.Extend)
		return
	}
	target.DisechoCount += sign
	target.ExpiresAt = target.ExpiresAt.Add(-time.Duration(sign) * policy.Reduce)
}
