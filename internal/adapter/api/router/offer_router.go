package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

func SetupOfferRouter(api *echo.Group, offerHandler *handler.OfferHandler, authMiddleware *middleware.AuthMiddleware) {
	offers := api.Group("/offers")
	offers.Use(authMiddleware.Authenticate)

	offers.GET("/:id", offerHandler.GetOffer)
	offers.POST("/:id/accept", offerHandler.AcceptOffer)
	offers.POST("/:id/reject", offerHandler.RejectOffer)
	offers.POST("/:id/counter", offerHandler.CounterOffer)
}
