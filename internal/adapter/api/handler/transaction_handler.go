package handler

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/middleware"
	"sakanect/internal/usecase"
	"sakanect/pkg/errors"
	"sakanect/pkg/response"
	"sakanect/pkg/utils"
)

type TransactionHandler struct {
	transactionUseCase *usecase.TransactionUseCase
}

func NewTransactionHandler(transactionUseCase *usecase.TransactionUseCase) *TransactionHandler {
	return &TransactionHandler{
		transactionUseCase: transactionUseCase,
	}
}

// ListTransactions takes ?role=buyer|seller and an optional ?status filter.
func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)
	role := c.QueryParam("role")
	if role != "" && role != "buyer" && role != "seller" {
		return response.Error(c, errors.BadRequest("role must be buyer or seller", nil))
	}

	transactions, total, err := h.transactionUseCase.ListTransactions(c.Request().Context(), middleware.GetSession(c),
		role, c.QueryParam("status"), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, transactions, total, pagination.Page, pagination.PageSize)
}

func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	transaction, err := h.transactionUseCase.GetTransaction(c.Request().Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, transaction)
}

func (h *TransactionHandler) MarkPaid(c echo.Context) error {
	transaction, err := h.transactionUseCase.MarkPaid(c.Request().Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, transaction)
}

func (h *TransactionHandler) Complete(c echo.Context) error {
	transaction, err := h.transactionUseCase.Complete(c.Request().Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, transaction)
}
