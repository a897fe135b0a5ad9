// campaign-manager-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"campaign-manager-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware authenticates stream requests from a `token` query
// param, validated against the auth service. EventSource cannot set
// headers, so the gateway user-context path does not apply here.
//
// Usage:
//
//	app.Get("/campaigns/:id/stream", middleware.SSEAuthMiddleware(authClient), live.StreamCampaign)
func SSEAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		if accessToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken)
		if err != nil {
			log.Printf("[SSEAuth] validation failed for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("user_roles", resp.Roles)
		return c.Next()
	}
}
