package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/service/matching"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// PostRide handles POST /v1/rides
func (h *Handlers) PostRide(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req dto.PostRideRequest
	if !h.bind(c, &req) {
		return
	}

	rd, err := h.Service.PostRide(c.Request.Context(), caller, ride.Draft{
		From:           req.From,
		To:             req.To,
		Stops:          req.Stops,
		StartTime:      req.StartTime,
		AvailableSeats: req.AvailableSeats,
		PricePerSeat:   req.PricePerSeat,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rd)
}

// SearchRides handles GET /v1/rides?from=&to=&route=a,b
func (h *Handlers) SearchRides(c *gin.Context) {
	criteria := matching.Criteria{
		From:  c.Query("from"),
		To:    c.Query("to"),
		Route: matching.ParseRoute(c.Query("route")),
	}

	rides, err := h.Service.SearchRides(c.Request.Context(), criteria)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(rides, len(rides)))
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	rd, err := h.Service.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rd)
}

// MyRides handles GET /v1/rides/mine
func (h *Handlers) MyRides(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	rides, err := h.Service.ListMyRides(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(rides, len(rides)))
}

// SuggestPrice handles POST /v1/rides/suggest-price
func (h *Handlers) SuggestPrice(c *gin.Context) {
	var req dto.SuggestPriceRequest
	if !h.bind(c, &req) {
		return
	}
	at := req.StartTime
	if at.IsZero() {
		at = time.Now()
	}

	price, err := h.Service.SuggestPrice(c.Request.Context(), req.From, req.To, at)
	if err != nil {
		h.Logger.Warn("Price suggestion failed",
			logger.String("from", req.From),
			logger.String("to", req.To),
			logger.Err(err),
		)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuggestPriceResponse{PricePerSeat: price})
}

// RequestRide handles POST /v1/rides/:id/requests
func (h *Handlers) RequestRide(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	req, err := h.Service.RequestRide(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *Handlers) CompleteRide(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req dto.CompleteRideRequest
	if !h.bind(c, &req) {
		return
	}

	settlement, err := h.Service.CompleteRide(c.Request.Context(), caller, c.Param("id"), req.RiderID, req.Price)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}
