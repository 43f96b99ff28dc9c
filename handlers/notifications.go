// handlers/notifications.go
package handlers

import (
	"strconv"

	"recycle-pickup-system/middleware"
	"recycle-pickup-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(app *fiber.App, notifier *services.NotificationService, authClient *services.AuthServiceClient) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/notifications", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		events, err := notifier.ListForParticipant(callerFromCtx(c).ID, limit)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(events)
	})

	// EventSource cannot send headers, so the stream authenticates via query
	// params against the auth service instead of gateway headers.
	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(authClient), notifier.StreamSSE)
}
