package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

func SetupUserRouter(api *echo.Group, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	users := api.Group("/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("/me", userHandler.GetCurrentUser)
	users.PUT("/me", userHandler.UpdateCurrentUser)
}
