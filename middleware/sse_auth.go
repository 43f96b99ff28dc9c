// recycle-pickup-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"recycle-pickup-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` and `device_id` from query params via
// the external auth service. EventSource clients cannot set headers, so the
// stream route authenticates out-of-band instead of through the gateway
// header contract.
//
// Usage:
//
//	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(authClient), notifier.StreamSSE)
func SSEAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			log.Printf("[SSEAuth] ❌ Missing query params on %s (token len=%d, device_id='%s')",
				c.Path(), len(accessToken), deviceID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		// Same locals the header middleware sets, so downstream handlers
		// never care which path authenticated the caller.
		c.Locals("user_id", resp.UserID)
		c.Locals("user_roles", resp.Roles)
		c.Locals("device_id", resp.DeviceID)

		return c.Next()
	}
}
