package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/utils"
)

// JWTProtected returns a middleware that requires a valid bearer token.
func JWTProtected(parser *auth.Parser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		tokenString, ok := bearerToken(authorization)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		identity, err := parser.Parse(tokenString)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		storeIdentity(c, identity)
		return c.Next()
	}
}

// OptionalJWT records the identity when a valid bearer token is present and
// otherwise lets the request through anonymously. Websocket upgrades use it so
// the session can fall back to the token query parameter.
func OptionalJWT(parser *auth.Parser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString, ok := bearerToken(c.Get("Authorization")); ok {
			if identity, err := parser.Parse(tokenString); err == nil {
				storeIdentity(c, identity)
			}
		}
		return c.Next()
	}
}

// IdentityFromLocals rebuilds the identity stored by the JWT middlewares.
func IdentityFromLocals(locals func(key interface{}, value ...interface{}) interface{}) auth.Identity {
	var identity auth.Identity
	if id, ok := locals("user_id").(uint); ok {
		identity.UserID = id
	}
	if role, ok := locals("user_role").(string); ok {
		identity.Role = role
	}
	if staff, ok := locals("is_staff").(bool); ok {
		identity.IsStaff = staff
	}
	return identity
}

func storeIdentity(c *fiber.Ctx, identity auth.Identity) {
	c.Locals("user_id", identity.UserID)
	if identity.Role != "" {
		c.Locals("user_role", identity.Role)
	}
	c.Locals("is_staff", identity.IsStaff)
}

func bearerToken(authorization string) (string, bool) {
	const bearer = "bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(bearer):])
	return token, token != ""
}

// RequireAuthenticated rejects requests that OptionalJWT left anonymous.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, _ := c.Locals("user_id").(uint); id == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}
