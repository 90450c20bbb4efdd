package handler

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/middleware"
	"sakanect/internal/usecase"
	"sakanect/pkg/response"
	"sakanect/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)
	unreadOnly := c.QueryParam("unread") == "true"

	notifications, total, err := h.notificationUseCase.List(c.Request().Context(), middleware.GetSession(c), unreadOnly, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, notifications, total, pagination.Page, pagination.PageSize)
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	if err := h.notificationUseCase.MarkRead(c.Request().Context(), middleware.GetSession(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Notification marked as read"})
}
