package router

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/handler"
	"sakanect/internal/adapter/api/middleware"
)

func SetupTransactionRouter(api *echo.Group, transactionHandler *handler.TransactionHandler, authMiddleware *middleware.AuthMiddleware) {
	transactions := api.Group("/transactions")
	transactions.Use(authMiddleware.Authenticate)

	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.POST("/:id/pay", transactionHandler.MarkPaid)
	transactions.POST("/:id/complete", transactionHandler.Complete)
}
