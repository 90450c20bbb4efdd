package handler

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/middleware"
	"sakanect/internal/usecase"
	"sakanect/pkg/response"
)

type OfferHandler struct {
	offerUseCase *usecase.OfferUseCase
}

func NewOfferHandler(offerUseCase *usecase.OfferUseCase) *OfferHandler {
	return &OfferHandler{
		offerUseCase: offerUseCase,
	}
}

// SendOffer opens a negotiation in the conversation at :id.
func (h *OfferHandler) SendOffer(c echo.Context) error {
	var req usecase.SendOfferInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	offer, err := h.offerUseCase.Send(c.Request().Context(), middleware.GetSession(c), c.Param("id"), req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, offer)
}

func (h *OfferHandler) ListOffers(c echo.Context) error {
	offers, err := h.offerUseCase.ListByConversation(c.Request().Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, offers)
}

func (h *OfferHandler) GetOffer(c echo.Context) error {
	offer, err := h.offerUseCase.GetOffer(c.Request().Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, offer)
}

func (h *OfferHandler) AcceptOffer(c echo.Context) error {
	result, err := h.offerUseCase.Accept(c.Request().Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, result)
}

func (h *OfferHandler) RejectOffer(c echo.Context) error {
	offer, err := h.offerUseCase.Reject(c.Request().Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, offer)
}

func (h *OfferHandler) CounterOffer(c echo.Context) error {
	var req usecase.CounterOfferInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	offer, err := h.offerUseCase.Counter(c.Request().Context(), middleware.GetSession(c), c.Param("id"), req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, offer)
}
