package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

func SetupChatRouter(api *echo.Group, chatHandler *handler.ChatHandler, offerHandler *handler.OfferHandler, authMiddleware *middleware.AuthMiddleware) {
	conversations := api.Group("/conversations")
	conversations.Use(authMiddleware.Authenticate)

	conversations.POST("", chatHandler.CreateConversation)
	conversations.GET("", chatHandler.ListConversations)
	conversations.GET("/:id/messages", chatHandler.GetMessages)
	conversations.POST("/:id/messages", chatHandler.SendMessage)
	conversations.PUT("/:id/read", chatHandler.MarkRead)

	conversations.POST("/:id/offers", offerHandler.SendOffer)
	conversations.GET("/:id/offers", offerHandler.ListOffers)
}
