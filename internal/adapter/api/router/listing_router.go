package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

// SetupListingRouter serves crop listings. Reads are public.
func SetupListingRouter(api *echo.Group, listingHandler *handler.ListingHandler, authMiddleware *middleware.AuthMiddleware) {
	crops := api.Group("/crops")
	crops.GET("", listingHandler.ListListings)
	crops.GET("/:id", listingHandler.GetListing)

	crops.POST("", listingHandler.CreateListing, authMiddleware.Authenticate)
	crops.PUT("/:id", listingHandler.UpdateListing, authMiddleware.Authenticate)
	crops.DELETE("/:id", listingHandler.DeleteListing, authMiddleware.Authenticate)
}
