package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
	"github.com/developerashishcanada/carpoolreact/pkg/websocket"
)

// SendMessage handles POST /v1/chats/messages
func (h *Handlers) SendMessage(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !h.bind(c, &req) {
		return
	}

	thread, err := h.Service.SendMessage(c.Request.Context(), caller, marketplace.SendInput{
		RideID:        req.RideID,
		ParticipantID: req.ParticipantID,
		Text:          req.Text,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Nudge the other side's open sockets; their chat subscriptions carry the content.
	if h.Hub != nil {
		for _, p := range thread.Participants {
			if p != caller.ID {
				h.Hub.SendToUser(p, websocket.Message{Type: "chat_message", Topic: "chat:" + thread.ID})
			}
		}
	}
	c.JSON(http.StatusOK, thread)
}

// ChatList handles GET /v1/chats
func (h *Handlers) ChatList(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	entries, err := h.Service.ChatList(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(entries, len(entries)))
}

// GetThread handles GET /v1/chats/:id
func (h *Handlers) GetThread(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	thread, err := h.Service.Thread(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// Refine handles POST /v1/suggestions/refine
func (h *Handlers) Refine(c *gin.Context) {
	var req dto.RefineRequest
	if !h.bind(c, &req) {
		return
	}
	text, err := h.Service.SuggestRefinement(c.Request.Context(), req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RefineResponse{Text: text})
}
