package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/middleware"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
)

// Register handles POST /v1/profile
func (h *Handlers) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.bind(c, &req) {
		return
	}

	p, err := h.Service.Register(c.Request.Context(), middleware.UserID(c), marketplace.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Role:            req.Role,
		Vehicle:         req.Vehicle,
		LicenseUploaded: req.LicenseUploaded,
		IDUploaded:      req.IDUploaded,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Me handles GET /v1/profile
func (h *Handlers) Me(c *gin.Context) {
	p, err := h.Service.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetProfile handles GET /v1/profiles/:id
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.Service.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetVerification handles PUT /v1/profiles/:id/verification
func (h *Handlers) SetVerification(c *gin.Context) {
	var req dto.VerificationRequest
	if !h.bind(c, &req) {
		return
	}

	p, err := h.Service.SetVerificationStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
