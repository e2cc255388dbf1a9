package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/models"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

func newTestVoteService(t *testing.T) (VoteService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	svc := NewVoteService(repository.NewVoteRepository(db), LifetimePolicies(testLifetime()), 5*time.Second, testLogger())
	return svc, db
}

func createPost(t *testing.T, db *gorm.DB, expiresAt time.Time) models.Post {
	t.Helper()
	post := models.Post{AuthorID: 1, Content: "hello", ExpiresAt: expiresAt}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func reloadPost(t *testing.T, db *gorm.DB, id uint) models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, db.First(&post, id).Error)
	return post
}

func TestToggleVoteEchoDisechoScenario(t *testing.T) {
	svc, db := newTestVoteService(t)
	ctx := context.Background()

	t0 := time.Now().UTC()
	post := createPost(t, db, t0.Add(24*time.Hour))

	alice := auth.Identity{UserID: 10}
	bob := auth.Identity{UserID: 11}

	result, err := svc.ToggleVote(ctx, alice, models.TargetPost, post.ID, true)
	require.NoError(t, err)
	require.Equal(t, dto.VoteActionInsert, result.Action)
	require.True(t, result.ExpiresAt.Equal(t0.Add(25*time.Hour)))
	require.Equal(t, 1, result.EchoCount)

	result, err = svc.ToggleVote(ctx, bob, models.TargetPost, post.ID, false)
	require.NoError(t, err)
	require.True(t, result.ExpiresAt.Equal(t0.Add(24*time.Hour)))
	require.Equal(t, 1, result.DisechoCount)

	result, err = svc.ToggleVote(ctx, alice, models.TargetPost, post.ID, true)
	require.NoError(t, err)
	require.Equal(t, dto.VoteActionDelete, result.Action)
	require.False(t, result.Voted)
	require.Nil(t, result.IsEcho)
	require.True(t, result.ExpiresAt.Equal(t0.Add(23*time.Hour)))
	require.Equal(t, 0, result.EchoCount)

	stored := reloadPost(t, db, post.ID)
	require.True(t, stored.ExpiresAt.Equal(t0.Add(23*time.Hour)))
	require.Equal(t, 0, stored.EchoCount)
	require.Equal(t, 1, stored.DisechoCount)
}

func TestToggleVoteSamePolarityRoundTrip(t *testing.T) {
	svc, db := newTestVoteService(t)
	ctx := context.Background()

	var comment models.Comment
	expires := time.Now().UTC().Add(100 * time.Hour)
	comment = models.Comment{AuthorID: 1, Text: "c", ExpiresAt: expires}
	require.NoError(t, db.Create(&comment).Error)

	user := auth.Identity{UserID: 3}
	for _, echo := range []bool{true, false} {
		first, err := svc.ToggleVote(ctx, user, models.TargetComment, comment.ID, echo)
		require.NoError(t, err)
		require.False(t, first.ExpiresAt.Equal(expires))

		second, err := svc.ToggleVote(ctx, user, models.TargetComment, comment.ID, echo)
		require.NoError(t, err)
		require.True(t, second.ExpiresAt.Equal(expires), "un-vote must restore the exact prior expiry")
		require.Zero(t, second.EchoCount)
		require.Zero(t, second.DisechoCount)
	}
}

func TestToggleVoteOppositePolarityComposes(t *testing.T) {
	svc, db := newTestVoteService(t)
	ctx := context.Background()

	post := createPost(t, db, time.Now().UTC().Add(10*time.Hour))
	user := auth.Identity{UserID: 4}

	afterEcho, err := svc.ToggleVote(ctx, user, models.TargetPost, post.ID, true)
	require.NoError(t, err)

	flipped, err := svc.ToggleVote(ctx, user, models.TargetPost, post.ID, false)
	require.NoError(t, err)
	require.Equal(t, dto.VoteActionFlip, flipped.Action)
	require.Equal(t, 0, flipped.EchoCount)
	require.Equal(t, 1, flipped.DisechoCount)
	require.True(t, flipped.ExpiresAt.Equal(afterEcho.ExpiresAt.Add(-2*time.Hour)))

	back, err := svc.ToggleVote(ctx, user, models.TargetPost, post.ID, true)
	require.NoError(t, err)
	require.Equal(t, dto.VoteActionFlip, back.Action)
	require.True(t, back.ExpiresAt.Equal(afterEcho.ExpiresAt))
	require.Equal(t, afterEcho.EchoCount, back.EchoCount)
	require.Equal(t, afterEcho.DisechoCount, back.DisechoCount)
	require.NotNil(t, back.IsEcho)
	require.True(t, *back.IsEcho)

	var total int64
	require.NoError(t, db.Model(&models.Vote{}).Where("user_id = ?", user.UserID).Count(&total).Error)
	require.Equal(t, int64(1), total)
}

func TestToggleVotePreconditions(t *testing.T) {
	svc, db := newTestVoteService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	floating := models.Comment{AuthorID: 1, Text: "float", ExpiresAt: now.Add(time.Hour), IsFloating: true}
	require.NoError(t, db.Create(&floating).Error)
	_, err := svc.ToggleVote(ctx, auth.Identity{UserID: 2}, models.TargetComment, floating.ID, true)
	require.ErrorIs(t, err, ErrInvalidTarget)
	_, err = svc.ToggleVote(ctx, auth.Identity{UserID: 2, IsStaff: true}, models.TargetComment, floating.ID, true)
	require.ErrorIs(t, err, ErrInvalidTarget, "staff cannot vote on floating comments either")

	expired := createPost(t, db, now.Add(-time.Minute))
	_, err = svc.ToggleVote(ctx, auth.Identity{UserID: 2}, models.TargetPost, expired.ID, true)
	require.ErrorIs(t, err, ErrExpired)
	require.Zero(t, reloadPost(t, db, expired.ID).EchoCount)

	result, err := svc.ToggleVote(ctx, auth.Identity{UserID: 2, IsStaff: true}, models.TargetPost, expired.ID, true)
	require.NoError(t, err)
	require.True(t, result.ExpiresAt.After(now), "an echo can resurrect an expired post")

	_, err = svc.ToggleVote(ctx, auth.Identity{UserID: 2}, models.TargetPost, 9999, true)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ToggleVote(ctx, auth.Identity{UserID: 2}, models.TargetKind("user"), 1, true)
	require.ErrorIs(t, err, ErrInvalidTarget)

	_, err = svc.ToggleVote(ctx, auth.Identity{}, models.TargetPost, expired.ID, true)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestToggleVoteAtMostOneVotePerUser(t *testing.T) {
	svc, db := newTestVoteService(t)
	ctx := context.Background()

	post := createPost(t, db, time.Now().UTC().Add(48*time.Hour))
	user := auth.Identity{UserID: 8}

	for _, echo := range []bool{true, true, false, true, false, false, true} {
		_, err := svc.ToggleVote(ctx, user, models.TargetPost, post.ID, echo)
		require.NoError(t, err)

		var total int64
		require.NoError(t, db.Model(&models.Vote{}).
			Where("user_id = ? AND target_type = ? AND target_id = ?", user.UserID, string(models.TargetPost), post.ID).
			Count(&total).Error)
		require.LessOrEqual(t, total, int64(1))
	}

	votes, err := svc.ListMyVotes(ctx, user.UserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.True(t, votes[0].IsEcho)
}

func TestToggleVoteConcurrentVotesDoNotLoseUpdates(t *testing.T) {
	svc, db := newTestVoteService(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(24 * time.Hour)
	post := createPost(t, db, start)

	const voters = 12
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := svc.ToggleVote(ctx, auth.Identity{UserID: userID}, models.TargetPost, post.ID, true)
			errs <- err
		}(uint(100 + i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := reloadPost(t, db, post.ID)
	require.Equal(t, voters, stored.EchoCount)
	require.True(t, stored.ExpiresAt.Equal(start.Add(voters*time.Hour)))
}
