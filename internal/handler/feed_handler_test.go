package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/models"
)

func TestCreatePostRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := srv.do(t, http.MethodPost, "/api/v1/posts", dto.PostCreateRequest{Content: "hello"}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, testConfig())
	token := srv.token(t, auth.Identity{UserID: 1})

	resp := srv.do(t, http.MethodPost, "/api/v1/posts", dto.PostCreateRequest{Content: "first echo"}, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created envelope[dto.PostResponse]
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.Equal(t, uint(1), created.Data.AuthorID)
	require.Equal(t, 24*time.Hour, created.Data.ExpiresAt.Sub(created.Data.CreatedAt))

	path := fmt.Sprintf("/api/v1/posts/%d/comments", created.Data.ID)
	resp = srv.do(t, http.MethodPost, path, dto.CommentCreateRequest{Text: "nice"}, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var comments envelope[[]dto.CommentResponse]
	decodeResponse(t, resp, &comments)
	require.Len(t, comments.Data, 1)
	require.Equal(t, "nice", comments.Data[0].Text)

	resp = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", created.Data.ID), nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var fetched envelope[dto.PostResponse]
	decodeResponse(t, resp, &fetched)
	require.Equal(t, int64(1), fetched.Data.CommentCount)

	resp = srv.do(t, http.MethodGet, "/api/v1/posts", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed envelope[[]dto.PostResponse]
	decodeResponse(t, resp, &listed)
	require.Len(t, listed.Data, 1)
}

func TestCreatePostValidation(t *testing.T) {
	srv := newTestServer(t, testConfig())
	token := srv.token(t, auth.Identity{UserID: 1})

	resp := srv.do(t, http.MethodPost, "/api/v1/posts", dto.PostCreateRequest{}, token)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/v1/posts/abc", nil, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/v1/posts?limit=x", nil, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExpiredPostVisibleOnlyToStaff(t *testing.T) {
	srv := newTestServer(t, testConfig())
	now := time.Now().UTC()
	post := models.Post{AuthorID: 1, Content: "old", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, srv.db.Create(&post).Error)

	path := fmt.Sprintf("/api/v1/posts/%d", post.ID)
	resp := srv.do(t, http.MethodGet, path, nil, srv.token(t, auth.Identity{UserID: 2}))
	require.Equal(t, fiber.StatusGone, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, path, nil, srv.token(t, auth.Identity{UserID: 3, IsStaff: true}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, path+"/comments", dto.CommentCreateRequest{Text: "late"}, srv.token(t, auth.Identity{UserID: 2}))
	require.Equal(t, fiber.StatusGone, resp.StatusCode)
}

func TestFloatingFeedEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())
	now := time.Now().UTC()
	require.NoError(t, srv.db.Create(&models.Comment{AuthorID: 1, Text: "drifting", CreatedAt: now, ExpiresAt: now.Add(time.Hour), IsFloating: true}).Error)
	require.NoError(t, srv.db.Create(&models.Comment{AuthorID: 1, Text: "gone", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute), IsFloating: true}).Error)

	resp := srv.do(t, http.MethodGet, "/api/v1/comments/floating", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[[]dto.CommentResponse]
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "drifting", body.Data[0].Text)
	require.True(t, body.Data[0].IsFloating)
	require.Nil(t, body.Data[0].PostID)
}

func TestExpiredPostCommentsStayReadable(t *testing.T) {
	srv := newTestServer(t, testConfig())
	now := time.Now().UTC()
	post := models.Post{AuthorID: 1, Content: "old", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, srv.db.Create(&post).Error)
	postID := post.ID
	require.NoError(t, srv.db.Create(&models.Comment{PostID: &postID, AuthorID: 2, Text: "still here", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}).Error)

	resp := srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/comments", post.ID), nil, srv.token(t, auth.Identity{UserID: 2}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body envelope[[]dto.CommentResponse]
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "still here", body.Data[0].Text)

	resp = srv.do(t, http.MethodGet, "/api/v1/posts/4242/comments", nil, "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeletePostFloatsComments(t *testing.T) {
	srv := newTestServer(t, testConfig())
	post := createLivePost(t, srv)
	author := srv.token(t, auth.Identity{UserID: post.AuthorID})
	postID := post.ID
	now := time.Now().UTC()
	comment := models.Comment{PostID: &postID, AuthorID: 2, Text: "orphan", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, srv.db.Create(&comment).Error)

	path := fmt.Sprintf("/api/v1/posts/%d", post.ID)
	resp := srv.do(t, http.MethodPost, path+"/echo", nil, srv.token(t, auth.Identity{UserID: 3}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, path, nil, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, path, nil, srv.token(t, auth.Identity{UserID: 2}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, path, nil, author)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, path, nil, author)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/v1/comments/floating", nil, "")
	var floating envelope[[]dto.CommentResponse]
	decodeResponse(t, resp, &floating)
	require.Len(t, floating.Data, 1)
	require.Equal(t, comment.ID, floating.Data[0].ID)

	resp = srv.do(t, http.MethodGet, "/api/v1/votes/me", nil, srv.token(t, auth.Identity{UserID: 3}))
	var votes envelope[[]dto.VoteResponse]
	decodeResponse(t, resp, &votes)
	require.Empty(t, votes.Data)

	resp = srv.do(t, http.MethodDelete, path, nil, author)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteCommentByAuthorOrStaff(t *testing.T) {
	srv := newTestServer(t, testConfig())
	post := createLivePost(t, srv)
	postID := post.ID
	now := time.Now().UTC()
	root := models.Comment{PostID: &postID, AuthorID: 2, Text: "root", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, srv.db.Create(&root).Error)
	reply := models.Comment{PostID: &postID, ParentCommentID: &root.ID, AuthorID: 4, Text: "reply", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, srv.db.Create(&reply).Error)

	resp := srv.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", root.ID), nil, srv.token(t, auth.Identity{UserID: 4}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", root.ID), nil, srv.token(t, auth.Identity{UserID: 8, IsStaff: true}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/comments", post.ID), nil, "")
	var body envelope[[]dto.CommentResponse]
	decodeResponse(t, resp, &body)
	require.Empty(t, body.Data, "replies go with their parent")
}
