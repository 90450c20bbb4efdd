package handler

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/middleware"
	"sakanect/internal/domain/entity"
	"sakanect/internal/usecase"
	"sakanect/pkg/response"
	"sakanect/pkg/utils"
)

type ListingHandler struct {
	listingUseCase *usecase.ListingUseCase
}

func NewListingHandler(listingUseCase *usecase.ListingUseCase) *ListingHandler {
	return &ListingHandler{
		listingUseCase: listingUseCase,
	}
}

func (h *ListingHandler) CreateListing(c echo.Context) error {
	var req usecase.CreateListingInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	listing, err := h.listingUseCase.CreateListing(c.Request().Context(), middleware.GetSession(c), req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, listing)
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	listing, err := h.listingUseCase.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, listing)
}

func (h *ListingHandler) ListListings(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)
	filter := entity.ListingFilter{
		OwnerID:  c.QueryParam("owner_id"),
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
		Region:   c.QueryParam("region"),
	}

	listings, total, err := h.listingUseCase.ListListings(c.Request().Context(), filter, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, listings, total, pagination.Page, pagination.PageSize)
}

func (h *ListingHandler) UpdateListing(c echo.Context) error {
	var req usecase.UpdateListingInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	listing, err := h.listingUseCase.UpdateListing(c.Request().Context(), middleware.GetSession(c), c.Param("id"), req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, listing)
}

func (h *ListingHandler) DeleteListing(c echo.Context) error {
	if err := h.listingUseCase.DeleteListing(c.Request().Context(), middleware.GetSession(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Listing deleted"})
}
