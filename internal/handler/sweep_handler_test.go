package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/models"
)

func TestSweepEndpointsRequireStaff(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := srv.do(t, http.MethodGet, "/api/v1/admin/sweeps", nil, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/v1/admin/sweeps", nil, "not-a-jwt")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	var body envelope[json.RawMessage]
	decodeResponse(t, resp, &body)
	require.Equal(t, "invalid token", body.Message)

	resp = srv.do(t, http.MethodPost, "/api/v1/admin/sweeps", nil, srv.token(t, auth.Identity{UserID: 1}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestManualSweepFloatsComments(t *testing.T) {
	srv := newTestServer(t, testConfig())
	staff := srv.token(t, auth.Identity{UserID: 1, Role: "admin"})

	now := time.Now().UTC()
	post := models.Post{AuthorID: 2, Content: "expired", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, srv.db.Create(&post).Error)
	postID := post.ID
	comment := models.Comment{PostID: &postID, AuthorID: 3, Text: "survivor", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, srv.db.Create(&comment).Error)

	resp := srv.do(t, http.MethodPost, "/api/v1/admin/sweeps", nil, staff)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var run envelope[dto.SweepRunResponse]
	decodeResponse(t, resp, &run)
	require.Equal(t, 1, run.Data.Processed)
	require.Equal(t, int64(1), run.Data.Floated)

	resp = srv.do(t, http.MethodGet, "/api/v1/comments/floating", nil, "")
	var floating envelope[[]dto.CommentResponse]
	decodeResponse(t, resp, &floating)
	require.Len(t, floating.Data, 1)
	require.Equal(t, "survivor", floating.Data[0].Text)

	resp = srv.do(t, http.MethodGet, "/api/v1/admin/sweeps", nil, staff)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var history envelope[[]dto.SweepRunResponse]
	decodeResponse(t, resp, &history)
	require.Len(t, history.Data, 1)
	require.Equal(t, run.Data.ID, history.Data[0].ID)
}
