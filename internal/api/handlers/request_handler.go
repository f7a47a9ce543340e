package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
	"github.com/developerashishcanada/carpoolreact/internal/service/matching"
)

// PostOpenRequest handles POST /v1/requests/open
func (h *Handlers) PostOpenRequest(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req dto.OpenRequestRequest
	if !h.bind(c, &req) {
		return
	}

	open, err := h.Service.PostOpenRequest(c.Request.Context(), caller, marketplace.OpenRequestInput{
		From:  req.From,
		To:    req.To,
		Stops: req.Stops,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, open)
}

// ListOpenRequests handles GET /v1/requests/open?from=&to=&route=a,b
func (h *Handlers) ListOpenRequests(c *gin.Context) {
	reqs, err := h.Service.ListOpenRequests(c.Request.Context(), matching.Criteria{
		From:  c.Query("from"),
		To:    c.Query("to"),
		Route: matching.ParseRoute(c.Query("route")),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(reqs, len(reqs)))
}

// ListRequests handles GET /v1/requests?active=true
func (h *Handlers) ListRequests(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	activeOnly, _ := strconv.ParseBool(c.Query("active"))

	reqs, err := h.Service.ListRequests(c.Request.Context(), caller, activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(reqs, len(reqs)))
}

// AcceptRequest handles POST /v1/requests/:id/accept
func (h *Handlers) AcceptRequest(c *gin.Context) {
	h.transition(c, h.Service.AcceptRequest)
}

// RejectRequest handles POST /v1/requests/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.transition(c, h.Service.RejectRequest)
}

// CancelRequest handles POST /v1/requests/:id/cancel
func (h *Handlers) CancelRequest(c *gin.Context) {
	h.transition(c, h.Service.CancelRequest)
}

type transitionFunc func(ctx context.Context, caller marketplace.Caller, requestID string) (*request.Request, error)

func (h *Handlers) transition(c *gin.Context, fn transitionFunc) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	req, err := fn(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
