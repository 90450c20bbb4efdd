package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

func SetupNotificationRouter(api *echo.Group, notificationHandler *handler.NotificationHandler, authMiddleware *middleware.AuthMiddleware) {
	notifications := api.Group("/notifications")
	notifications.Use(authMiddleware.Authenticate)

	notifications.GET("", notificationHandler.ListNotifications)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
}
