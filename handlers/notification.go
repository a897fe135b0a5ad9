package handlers

import (
	"campaign-manager-system/middleware"
	"campaign-manager-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(app *fiber.App, notificationService *services.NotificationService, live *services.LiveBroker, authClient *services.AuthServiceClient) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/notifications", notificationService.ListNotifications)
	secured.Get("/notifications/unread-count", notificationService.UnreadCount)
	secured.Patch("/notifications/:id/read", notificationService.MarkRead)
	secured.Patch("/notifications/:id/dismiss", notificationService.Dismiss)
	secured.Post("/notifications/read-all", notificationService.MarkAllRead)

	secured.Get("/notifications/preferences", notificationService.GetPreferences)
	secured.Put("/notifications/preferences", notificationService.UpdatePreferences)

	// Live stream authenticates via query token (EventSource can't set headers)
	app.Get("/campaigns/:id/stream", middleware.SSEAuthMiddleware(authClient), live.StreamCampaign)
}
