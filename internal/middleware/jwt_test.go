package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/echo-go-api/internal/auth"
)

func identityApp(guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/me", guard, func(c *fiber.Ctx) error {
		identity := IdentityFromLocals(c.Locals)
		return c.JSON(fiber.Map{"user_id": identity.UserID, "staff": identity.IsStaff})
	})
	return app
}

func TestJWTProtected(t *testing.T) {
	parser := auth.NewParser("secret")
	token, err := parser.Issue(auth.Identity{UserID: 7, IsStaff: true}, time.Minute)
	require.NoError(t, err)

	app := identityApp(JWTProtected(parser))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOptionalJWTAllowsAnonymous(t *testing.T) {
	parser := auth.NewParser("secret")
	app := identityApp(OptionalJWT(parser))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAuthenticatedAfterOptionalJWT(t *testing.T) {
	parser := auth.NewParser("secret")
	app := fiber.New()
	app.Use(OptionalJWT(parser))
	app.Get("/me", RequireAuthenticated(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := parser.Issue(auth.Identity{UserID: 2}, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
