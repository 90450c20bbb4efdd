package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

func SetupMarketPriceRouter(api *echo.Group, marketPriceHandler *handler.MarketPriceHandler, authMiddleware *middleware.AuthMiddleware) {
	prices := api.Group("/market-prices")
	prices.GET("", marketPriceHandler.LatestPrices)
	prices.POST("", marketPriceHandler.RecordPrice, authMiddleware.Authenticate, middleware.AdminOnly)
}
