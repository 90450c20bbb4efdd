package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/middleware"
	"sakanect/internal/usecase"
	"sakanect/pkg/response"
)

type MarketPriceHandler struct {
	marketPriceUseCase *usecase.MarketPriceUseCase
}

func NewMarketPriceHandler(marketPriceUseCase *usecase.MarketPriceUseCase) *MarketPriceHandler {
	return &MarketPriceHandler{
		marketPriceUseCase: marketPriceUseCase,
	}
}

func (h *MarketPriceHandler) LatestPrices(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	prices, err := h.marketPriceUseCase.LatestPrices(c.Request().Context(), c.QueryParam("crop"), c.QueryParam("region"), limit)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, prices)
}

func (h *MarketPriceHandler) RecordPrice(c echo.Context) error {
	var req usecase.RecordPriceInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	price, err := h.marketPriceUseCase.RecordPrice(c.Request().Context(), middleware.GetSession(c), req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, price)
}
