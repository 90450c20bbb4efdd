package handler

import (
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/middleware"
	"sakanect/internal/usecase"
	"sakanect/pkg/response"
	"sakanect/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createConversationRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	ListingID     string `json:"listing_id"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// CreateConversation returns the caller's thread with the participant,
// creating it if needed.
func (h *ChatHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	conversation, err := h.chatUseCase.CreateConversation(c.Request().Context(), middleware.GetSession(c), usecase.CreateConversationInput{
		ParticipantID: req.ParticipantID,
		ListingID:     req.ListingID,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, conversation)
}

func (h *ChatHandler) ListConversations(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	conversations, total, err := h.chatUseCase.ListConversations(c.Request().Context(), middleware.GetSession(c), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, conversations, total, pagination.Page, pagination.PageSize)
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.GetMessages(c.Request().Context(), middleware.GetSession(c), c.Param("id"), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, messages, total, pagination.Page, pagination.PageSize)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), middleware.GetSession(c), c.Param("id"), usecase.SendMessageInput{Text: req.Text})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	if err := h.chatUseCase.MarkRead(c.Request().Context(), middleware.GetSession(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Conversation marked as read"})
}
