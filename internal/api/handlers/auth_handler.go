package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/middleware"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// SignInAnonymously handles POST /v1/auth/anonymous
func (h *Handlers) SignInAnonymously(c *gin.Context) {
	if h.Signer == nil {
		h.respondError(c, apperrors.NewAppError(
			"NOT_SUPPORTED",
			"Anonymous sign-in is handled by the identity provider's client SDK",
			http.StatusNotImplemented,
			nil,
		))
		return
	}

	token, userID, err := h.Signer.SignInAnonymously()
	if err != nil {
		h.respondError(c, apperrors.ExternalService("Could not sign in", err))
		return
	}

	h.Logger.Info("Anonymous sign-in", logger.String("user_id", userID))
	c.JSON(http.StatusCreated, dto.SignInResponse{Token: token, UserID: userID})
}

// SignOut handles POST /v1/auth/signout. Tokens are stateless, so the
// client discards its token; the server only records the event.
func (h *Handlers) SignOut(c *gin.Context) {
	h.Logger.Info("Signed out", logger.String("user_id", middleware.UserID(c)))
	c.Status(http.StatusNoContent)
}
