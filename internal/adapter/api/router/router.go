package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, h handler.Handlers, authMiddleware *middleware.AuthMiddleware) {
	SetupHealthRouter(e, h.Health)

	api := e.Group("/api")
	SetupListingRouter(api, h.Listing, authMiddleware)
	SetupChatRouter(api, h.Chat, h.Offer, authMiddleware)
	SetupOfferRouter(api, h.Offer, authMiddleware)
	SetupTransactionRouter(api, h.Transaction, authMiddleware)
	SetupNotificationRouter(api, h.Notification, authMiddleware)
	SetupMarketPriceRouter(api, h.MarketPrice, authMiddleware)
	SetupUserRouter(api, h.User, authMiddleware)

	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
}
