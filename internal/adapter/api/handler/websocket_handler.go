package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"sakanect/internal/adapter/api/middleware"
	ws "sakanect/internal/infrastructure/websocket"
	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
	"sakanect/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	upgrader  gorillaws.Upgrader
}

// NewWebSocketHandler accepts handshakes from allowedOrigins; an empty list
// accepts any origin.
func NewWebSocketHandler(wsManager *ws.Manager, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// HandleWebSocket upgrades an authenticated request and registers the
// connection for the caller's events.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	sess := middleware.GetSession(c)
	if sess.IsZero() {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed for %s: %v", sess.UserID, err)
		return nil
	}

	client := ws.NewClient(sess.UserID, conn)
	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
