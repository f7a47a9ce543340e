package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/developerashishcanada/carpoolreact/internal/middleware"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
	"github.com/developerashishcanada/carpoolreact/pkg/websocket"
)

// HandleWebSocket handles GET /v1/ws. The caller is already authenticated;
// topics are chosen over the socket with {"type":"subscribe","topic":...}.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	if h.Hub == nil {
		h.respondError(c, apperrors.NotFound("Real-time updates are disabled", nil))
		return
	}
	cfg := h.Hub.Config()
	upgrader := gorilla.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins in development
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn, middleware.UserID(c), h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
