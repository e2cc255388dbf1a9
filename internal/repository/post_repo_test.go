package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/echo-go-api/internal/models"
)

func TestPostRepositoryListExpiredIDsIncludesBoundary(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	boundary := models.Post{AuthorID: 1, Content: "boundary", ExpiresAt: now}
	past := models.Post{AuthorID: 1, Content: "past", ExpiresAt: now.Add(-time.Hour)}
	live := models.Post{AuthorID: 1, Content: "live", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, &boundary))
	require.NoError(t, repo.Create(ctx, &past))
	require.NoError(t, repo.Create(ctx, &live))

	ids, err := repo.ListExpiredIDs(ctx, now)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint{boundary.ID, past.ID}, ids)

	posts, err := repo.ListLive(ctx, now, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, live.ID, posts[0].ID)
}

func TestPostRepositoryFloatCommentsAndDelete(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	post := models.Post{AuthorID: 1, Content: "old", ExpiresAt: now.Add(-time.Minute)}
	other := models.Post{AuthorID: 1, Content: "other", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, posts.Create(ctx, &post))
	require.NoError(t, posts.Create(ctx, &other))

	for i := 0; i < 3; i++ {
		require.NoError(t, comments.Create(ctx, &models.Comment{PostID: &post.ID, AuthorID: 2, Text: "c", ExpiresAt: now.Add(240 * time.Hour)}))
	}
	untouched := models.Comment{PostID: &other.ID, AuthorID: 2, Text: "keep", ExpiresAt: now.Add(240 * time.Hour)}
	require.NoError(t, comments.Create(ctx, &untouched))

	require.NoError(t, db.Create(&models.Vote{UserID: 5, TargetType: models.TargetPost, TargetID: post.ID, IsEcho: true}).Error)
	require.NoError(t, db.Create(&models.Vote{UserID: 5, TargetType: models.TargetPost, TargetID: other.ID, IsEcho: true}).Error)

	floated, err := posts.FloatCommentsAndDelete(ctx, post.ID, ExpiredAt(now))
	require.NoError(t, err)
	require.Equal(t, int64(3), floated)

	_, err = posts.GetByID(ctx, post.ID)
	require.Error(t, err)

	floating, err := comments.ListFloating(ctx, now, 10, 0)
	require.NoError(t, err)
	require.Len(t, floating, 3)
	for _, comment := range floating {
		require.True(t, comment.IsFloating)
		require.Nil(t, comment.PostID)
	}

	kept, err := comments.GetByID(ctx, untouched.ID)
	require.NoError(t, err)
	require.False(t, kept.IsFloating)
	require.NotNil(t, kept.PostID)

	var remaining []models.Vote
	require.NoError(t, db.Where("target_type = ?", string(models.TargetPost)).Find(&remaining).Error)
	require.Len(t, remaining, 1, "votes on the deleted post go with it")
	require.Equal(t, other.ID, remaining[0].TargetID)
}

func TestPostRepositoryFloatCommentsSkipsRevivedPost(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	post := models.Post{AuthorID: 1, Content: "revived", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, &post))

	_, err := repo.FloatCommentsAndDelete(ctx, post.ID, ExpiredAt(now))
	require.ErrorIs(t, err, ErrPostNotExpired)

	_, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
}

func TestPostRepositoryFloatCommentsHonoursGuard(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	post := models.Post{AuthorID: 1, Content: "live", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, posts.Create(ctx, &post))
	comment := models.Comment{PostID: &post.ID, AuthorID: 2, Text: "c", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, comments.Create(ctx, &comment))

	denied := errors.New("not yours")
	var seen models.Post
	_, err := posts.FloatCommentsAndDelete(ctx, post.ID, func(locked models.Post) error {
		seen = locked
		return denied
	})
	require.ErrorIs(t, err, denied)
	require.Equal(t, post.ID, seen.ID)

	stored, err := comments.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	require.False(t, stored.IsFloating)

	floated, err := posts.FloatCommentsAndDelete(ctx, post.ID, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), floated)

	stored, err = comments.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	require.True(t, stored.IsFloating)
	require.Nil(t, stored.PostID)
}

func TestCommentRepositoryCountAttached(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	post := models.Post{AuthorID: 1, Content: "p", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, posts.Create(ctx, &post))
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: &post.ID, AuthorID: 1, Text: "a", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: &post.ID, AuthorID: 1, Text: "b", ExpiresAt: now.Add(time.Hour)}))

	counts, err := comments.CountAttached(ctx, []uint{post.ID, post.ID + 100})
	require.NoError(t, err)
	require.Equal(t, int64(2), counts[post.ID])
	require.Zero(t, counts[post.ID+100])
}
