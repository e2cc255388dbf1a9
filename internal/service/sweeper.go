package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/models"
	"github.com/noah-isme/echo-go-api/internal/observability"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

// SweepService exposes the sweeper to staff endpoints.
type SweepService interface {
	Trigger(ctx context.Context) (dto.SweepRunResponse, error)
	History(ctx context.Context, limit int) ([]dto.SweepRunResponse, error)
}

// SweeperConfig tunes the expiry sweeper.
type SweeperConfig struct {
	Interval    time.Duration
	Concurrency int
	Timeout     time.Duration
	LockKey     string
}

// ExpirySweeper deletes expired posts and floats their comments, one transaction per post.
type ExpirySweeper struct {
	posts  repository.PostRepository
	runs   repository.SweepRunRepository
	redis  *redis.Client
	cfg    SweeperConfig
	nodeID string
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewExpirySweeper constructs a sweeper. redisClient may be nil, in which case every node sweeps.
func NewExpirySweeper(posts repository.PostRepository, runs repository.SweepRunRepository, redisClient *redis.Client, cfg SweeperConfig, logger zerolog.Logger) *ExpirySweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "echo:sweeper:lock"
	}

	return &ExpirySweeper{
		posts:  posts,
		runs:   runs,
		redis:  redisClient,
		cfg:    cfg,
		nodeID: uuid.NewString(),
		logger: logger.With().Str("component", "expiry_sweeper").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/echo-go-api/internal/service/sweeper"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Sweep processes every post expired at call time and returns how many were deleted.
// Per-post failures are logged and left for the next sweep.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	run, err := s.sweep(ctx)
	if err != nil {
		return 0, err
	}
	return run.Processed, nil
}

func (s *ExpirySweeper) sweep(ctx context.Context) (models.SweepRun, error) {
	ctx, span := s.tracer.Start(ctx, "sweeper.sweep")
	defer span.End()

	start := s.now()
	ids, err := s.posts.ListExpiredIDs(ctx, start)
	if err != nil {
		span.RecordError(err)
		return models.SweepRun{}, translateStoreError(err, "expired posts")
	}

	var (
		processed atomic.Int64
		floated   atomic.Int64
		mu        sync.Mutex
		failedIDs []uint
	)

	var group errgroup.Group
	group.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		postID := id
		group.Go(func() error {
			postCtx := ctx
			if s.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				postCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
				defer cancel()
			}

			count, err := s.posts.FloatCommentsAndDelete(postCtx, postID, repository.ExpiredAt(start))
			switch {
			case err == nil:
				processed.Add(1)
				floated.Add(count)
			case errors.Is(err, repository.ErrPostNotExpired), errors.Is(err, gorm.ErrRecordNotFound):
				s.logger.Debug().Uint("post_id", postID).Err(err).Msg("post skipped by sweep")
			default:
				observability.SweeperFailures().Inc()
				s.logger.Error().Err(err).Uint("post_id", postID).Msg("failed to sweep post")
				mu.Lock()
				failedIDs = append(failedIDs, postID)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	failed := make([]interface{}, 0, len(failedIDs))
	for _, id := range failedIDs {
		failed = append(failed, id)
	}

	run := models.SweepRun{
		StartedAt:  start,
		FinishedAt: s.now(),
		Expired:    len(ids),
		Processed:  int(processed.Load()),
		Floated:    floated.Load(),
		Failed:     len(failedIDs),
		Details: datatypes.JSONMap{
			"node_id":         s.nodeID,
			"failed_post_ids": failed,
		},
	}

	observability.SweeperDeleted().Add(float64(run.Processed))
	observability.SweeperFloated().Add(float64(run.Floated))
	span.SetAttributes(
		attribute.Int("sweeper.expired", run.Expired),
		attribute.Int("sweeper.processed", run.Processed),
		attribute.Int("sweeper.failed", run.Failed),
	)

	if s.runs != nil {
		if err := s.runs.Create(ctx, &run); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record sweep run")
		}
	}

	s.logger.Info().
		Int("expired", run.Expired).
		Int("processed", run.Processed).
		Int64("floated", run.Floated).
		Int("failed", run.Failed).
		Dur("duration", run.FinishedAt.Sub(run.StartedAt)).
		Msg("sweep finished")

	return run, nil
}

// Run sweeps immediately and then on every interval until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *ExpirySweeper) tick(ctx context.Context) {
	if !s.acquireLock(ctx) {
		s.logger.Debug().Msg("sweep skipped, another node holds the lock")
		return
	}
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("sweep failed")
	}
}

// acquireLock claims the sweep for this interval. Redis failures fall back to sweeping locally.
func (s *ExpirySweeper) acquireLock(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}

	ok, err := s.redis.SetNX(ctx, s.cfg.LockKey, s.nodeID, s.cfg.Interval).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("sweeper lock unavailable, sweeping locally")
		return true
	}
	return ok
}

func (s *ExpirySweeper) Trigger(ctx context.Context) (dto.SweepRunResponse, error) {
	run, err := s.sweep(ctx)
	if err != nil {
		return dto.SweepRunResponse{}, err
	}
	return dto.NewSweepRunResponse(run), nil
}

func (s *ExpirySweeper) History(ctx context.Context, limit int) ([]dto.SweepRunResponse, error) {
	if s.runs == nil {
		return []dto.SweepRunResponse{}, nil
	}
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, translateStoreError(err, "sweep runs")
	}
	return dto.NewSweepRunResponseSlice(runs), nil
}
